package logger

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	require.NoError(t, Setup("debug", "text", ""))
	assert.Equal(t, log.DebugLevel, Log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, Log.Formatter)

	require.NoError(t, Setup("nonsense", "json", ""))
	assert.Equal(t, log.InfoLevel, Log.GetLevel(), "неизвестный уровень заменяется на info")
	assert.IsType(t, &log.JSONFormatter{}, Log.Formatter)
}

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup("info", "json", path))
	defer Silence()

	WithCompany(42).Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"company_id":42`)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestSetup_BadFile(t *testing.T) {
	assert.Error(t, Setup("info", "json", filepath.Join(t.TempDir(), "missing", "app.log")))
	Silence()
}
