package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"agentmemory/internal/memerr"
)

// sanitizeContent strips control characters, NFC-normalizes, and truncates
// to maxBytes, mirroring the teacher's ConversationChunk.Validate/
// ChunkMetadata.Validate pattern of checking content at the edge. Control
// characters and any bytes past maxBytes are dropped without an error; it
// returns InvalidContent only if the result is empty or whitespace-only.
func sanitizeContent(content string, maxBytes int) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", memerr.New(memerr.InvalidContent, errEmptyContent)
	}

	var b strings.Builder
	for _, r := range content {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	// Normalize to NFC so visually identical content that arrived with a
	// different Unicode decomposition still hashes and embeds the same way,
	// e.g. precomposed "é" vs "e" + combining acute accent.
	clean := strings.TrimSpace(norm.NFC.String(b.String()))
	if clean == "" {
		return "", memerr.New(memerr.InvalidContent, errEmptyContent)
	}

	if len(clean) > maxBytes {
		clean = truncateToValidUTF8(clean, maxBytes)
	}

	return clean, nil
}

// truncateToValidUTF8 cuts s to at most n bytes without splitting a
// multi-byte rune in half.
func truncateToValidUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}

var errEmptyContent = emptyContentError{}

type emptyContentError struct{}

func (emptyContentError) Error() string { return "content is empty after sanitization" }
