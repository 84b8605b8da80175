package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogAppendsOneJSONLinePerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)

	logger.Log(Event{TenantID: "tenant-a", Method: "memory/remember", Success: true})
	logger.Log(Event{TenantID: "tenant-a", Method: "memory/forget", Success: false, Error: "not found"})
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		lines = append(lines, ev)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "memory/remember", lines[0].Method)
	assert.True(t, lines[0].Success)
	assert.Equal(t, "memory/forget", lines[1].Method)
	assert.False(t, lines[1].Success)
	assert.Equal(t, "not found", lines[1].Error)
}

func TestNewLoggerCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "audit.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
