package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOutputAndLevel(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "server.log")
	errOut := filepath.Join(dir, "errors.log")
	l, err := New(Config{Level: "warn", Outputs: []string{"file"}, OutputFile: out, ErrorFile: errOut, Format: "json"})
	require.NoError(t, err)

	l.LogCandle("closed", "AAPL", map[string]interface{}{"close": 101.5})
	require.NoError(t, l.SetLevel("info"))
	assert.Equal(t, "info", l.Level())
	l.LogCandle("closed", "AMZN", nil)
	l.WithFields(map[string]interface{}{"component": "hub"}).LogClient("connected", "c-1", nil)
	l.LogError(errors.New("boom"), map[string]interface{}{"action": "write"})
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, "AAPL", "info entries are dropped at warn level")
	assert.Contains(t, body, `"symbol":"AMZN"`)
	assert.Contains(t, body, `"client_id":"c-1"`)
	assert.Contains(t, body, `"component":"hub"`)

	rawErr, err := os.ReadFile(errOut)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(rawErr), "error_event"))

	assert.Error(t, l.SetLevel("nope"))
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.LogCandle("closed", "AAPL", nil)
	assert.Equal(t, "info", l.Level())
}
