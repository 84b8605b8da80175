package rpc

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// handleOpenAPI serves a generated OpenAPI document describing the /rpc
// envelope and its five supported methods, adapted from the teacher's
// cmd/openapi serve command (kin-openapi document served as JSON at a fixed
// path) but built in memory instead of loaded from a YAML file on disk,
// since this package has exactly one route to describe rather than a whole
// task/PRD surface.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, buildOpenAPIDoc())
}

func buildOpenAPIDoc() *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "agentmemory RPC",
			Description: "JSON-RPC-2.0-shaped transport over the agent memory engine.",
			Version:     "1.0.0",
		},
		Paths: openapi3.NewPaths(),
	}

	requestBody := &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(rpcEnvelopeSchema()),
	}
	response := openapi3.NewResponse().
		WithDescription("A JSON-RPC response envelope; result shape depends on the called method.").
		WithContent(openapi3.NewContentWithJSONSchema(openapi3.NewSchema()))

	op := openapi3.NewOperation()
	op.Summary = "Dispatch one of memory/remember, memory/recall, memory/forget, memory/context, memory/stats"
	op.OperationID = "rpcDispatch"
	op.RequestBody = requestBody
	op.Responses = openapi3.NewResponses()
	op.Responses.Set("200", &openapi3.ResponseRef{Value: response})

	for _, method := range []string{
		"memory/remember", "memory/recall", "memory/forget", "memory/context", "memory/stats",
	} {
		op.Description += method + "\n"
	}

	doc.Paths.Set("/rpc", &openapi3.PathItem{Post: op})

	healthOp := openapi3.NewOperation()
	healthOp.Summary = "Report engine health"
	healthOp.OperationID = "getHealth"
	healthOp.Responses = openapi3.NewResponses()
	healthOp.Responses.Set("200", &openapi3.ResponseRef{
		Value: openapi3.NewResponse().WithDescription("healthy, degraded, or unhealthy").
			WithContent(openapi3.NewContentWithJSONSchema(openapi3.NewSchema())),
	})
	doc.Paths.Set("/health", &openapi3.PathItem{Get: healthOp})

	return doc
}

func rpcEnvelopeSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithProperty("jsonrpc", openapi3.NewStringSchema()).
		WithProperty("method", openapi3.NewStringSchema()).
		WithProperty("params", openapi3.NewObjectSchema()).
		WithProperty("id", openapi3.NewSchema())
}
