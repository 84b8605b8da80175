package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeContentStripsControlCharsKeepsNewlinesAndTabs(t *testing.T) {
	clean, err := sanitizeContent("hello\x00world\n\tindented", 1024)
	require.NoError(t, err)
	assert.Equal(t, "helloworld\n\tindented", clean)
}

func TestSanitizeContentRejectsEmptyAfterCleanup(t *testing.T) {
	_, err := sanitizeContent("\x00\x01\x02", 1024)
	assert.Error(t, err)
}

func TestSanitizeContentRejectsBlank(t *testing.T) {
	_, err := sanitizeContent("   \t  ", 1024)
	assert.Error(t, err)
}

func TestSanitizeContentNormalizesToNFC(t *testing.T) {
	// "e" + combining acute accent (U+0065 U+0301) vs precomposed "é".
	decomposed := "café"
	precomposed := "café"

	cleanDecomposed, err := sanitizeContent(decomposed, 1024)
	require.NoError(t, err)
	cleanPrecomposed, err := sanitizeContent(precomposed, 1024)
	require.NoError(t, err)

	assert.Equal(t, cleanPrecomposed, cleanDecomposed)
}

func TestSanitizeContentTruncatesToMaxBytesWithoutSplittingRunes(t *testing.T) {
	content := "日本語のテキスト"
	clean, err := sanitizeContent(content, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(clean), 10)
}
