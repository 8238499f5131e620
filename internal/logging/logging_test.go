package logging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidewalk-ota/otadash/internal/logtail"
)

func restoreGlobals(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestToFile_WritesParseableLines(t *testing.T) {
	restoreGlobals(t)
	path := filepath.Join(t.TempDir(), "nested", "otadash.log")

	closer, err := ToFile(path, "info")
	require.NoError(t, err)
	log.Debug().Msg("hidden")
	log.Info().Str("component", "poll").Str("device_id", "wd-1").Msg("fetched")
	require.NoError(t, closer.Close())

	entries, err := logtail.Tail(path, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "poll", entries[0].Component)
	assert.Equal(t, "wd-1", entries[0].Fields["device_id"])
	assert.False(t, entries[0].Time.IsZero())
}

func TestToConsole(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	logger := ToConsole(&buf, "warn")
	logger.Info().Msg("quiet")
	logger.Warn().Msg("loud")
	assert.False(t, strings.Contains(buf.String(), "quiet"))
	assert.Contains(t, buf.String(), "loud")
}
