package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	path := filepath.Join(t.TempDir(), "logs", "sentinel.log")
	closer, err := Setup("debug", path)
	require.NoError(t, err)

	log.Debug().Int("rows", 7).Msg("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rows":7`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	_, err := Setup("loud", "")
	assert.Error(t, err)
}
