package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSON(t *testing.T) {
	t.Cleanup(func() {
		viper.Reset()
		InitDefault()
	})
	viper.Set(LevelKey, "warn")
	viper.Set(FormatKey, "json")

	var buf bytes.Buffer
	Init(&buf)

	log.Info().Msg("dropped")
	log.Warn().Str("doi", "doi:10.5072/x").Msg("kept")

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "doi:10.5072/x", entry["doi"])
}

func TestMultiLogger(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var console, structured bytes.Buffer
	l := NewMultiLogger(
		NewConsoleLogger(&console),
		NewZLogger(zerolog.New(&structured)),
	)

	l.Info("registered %s", "doi:10.5072/a")
	l.Warn("skipped %s", "123456789/2")
	l.Error("failed %s", "123456789/3")

	assert.Equal(t, "✓ registered doi:10.5072/a\n- skipped 123456789/2\n✗ failed 123456789/3\n", console.String())
	assert.Equal(t, 3, strings.Count(structured.String(), "\n"))
	assert.Contains(t, structured.String(), `"level":"error"`)
}
