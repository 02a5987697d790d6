package logging

import (
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wenwu/saas-platform/trialapp-service/internal/config"
)

func TestSetup_File(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	file := filepath.Join(t.TempDir(), "logs", "trialapp.log")
	_, closer, err := Setup(config.LogConfig{File: file, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	require.NoError(t, err)

	log.Printf("[test] hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] hello")
}

func TestSetup_Stdout(t *testing.T) {
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	w, closer, err := Setup(config.LogConfig{})
	require.NoError(t, err)
	assert.Equal(t, os.Stdout, w)
	assert.NoError(t, closer.Close())
}
