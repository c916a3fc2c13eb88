package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2000, cfg.Collab.SaveDebounceMs)
	assert.Equal(t, 256, cfg.Collab.SendBufferSize)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COEDIT_SERVER_PORT", "9191")
	t.Setenv("COEDIT_COLLAB_SAVEDEBOUNCEMS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Collab.SaveDebounceMs)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("COEDIT_SERVER_PORT", "-1")

	_, err := Load()
	assert.Error(t, err)
}
