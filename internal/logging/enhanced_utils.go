package logging

import (
	"context"
	"time"

	"agentmemory/internal/memerr"
)

// EnhancedLogger wraps a Logger with a few domain-specific convenience
// methods, with one preset per memoryd subsystem below. The engine, stores
// and rpc server take a plain injected Logger instead.
type EnhancedLogger struct {
	Logger
	component string
}

// NewEnhancedLogger creates an enhanced logger scoped to component.
func NewEnhancedLogger(component string) *EnhancedLogger {
	baseLogger := NewLogger(INFO)
	return &EnhancedLogger{
		Logger:    baseLogger.WithComponent(component),
		component: component,
	}
}

// WithContext attaches the trace ID carried on ctx, if any.
func (l *EnhancedLogger) WithContext(ctx context.Context) *EnhancedLogger {
	traceID := GetTraceID(ctx)
	return &EnhancedLogger{
		Logger:    l.Logger.WithTraceID(traceID),
		component: l.component,
	}
}

// WithError logs err, surfacing its memerr.Kind when it carries one.
func (l *EnhancedLogger) WithError(err error) *EnhancedLogger {
	if err == nil {
		return l
	}

	if kind := memerr.KindOf(err); kind != "" {
		l.Error("operation failed",
			"error", err.Error(),
			"kind", string(kind),
		)
	} else {
		l.Error("operation failed", "error", err.Error())
	}

	return l
}

// LogOperation logs the start and completion (or failure) of fn, with
// duration.
func (l *EnhancedLogger) LogOperation(operation string, fn func() error) error {
	start := time.Now()
	l.Info("operation started", "operation", operation)

	err := fn()
	duration := time.Since(start)

	if err != nil {
		l.Error("operation failed",
			"operation", operation,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return err
	}

	l.Info("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
	return nil
}

// LogSlowOperation warns when an operation's duration exceeds expected.
func (l *EnhancedLogger) LogSlowOperation(operation string, duration, expected time.Duration) {
	l.Warn("slow operation",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
		"expected_ms", expected.Milliseconds(),
		"slowdown_factor", float64(duration)/float64(expected),
	)
}

// Component loggers for memoryd's major subsystems.
var (
	EngineLogger      = NewEnhancedLogger("engine")
	VectorStoreLogger = NewEnhancedLogger("vectorstore")
	EmbedderLogger    = NewEnhancedLogger("embedder")
	OptimizerLogger   = NewEnhancedLogger("optimizer")
	RPCLogger         = NewEnhancedLogger("rpc")
)

// GetComponentLogger returns an enhanced logger scoped to component.
func GetComponentLogger(component string) *EnhancedLogger {
	return NewEnhancedLogger(component)
}
