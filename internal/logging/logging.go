package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// InitDefault installs a console logger at info level. It is used until the
// flags and the user configuration have been read.
func InitDefault() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = newLogger(os.Stderr, "console", false)
	zerolog.DefaultContextLogger = &log.Logger
}

// Init configures the global logger from viper. A nil out logs to stderr.
func Init(out io.Writer) {
	if out == nil {
		out = os.Stderr
	}

	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString(LevelKey)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = newLogger(out, viper.GetString(FormatKey), viper.GetBool(NoColorKey))
	zerolog.DefaultContextLogger = &log.Logger

	if err != nil {
		log.Warn().Err(err).Str("level", viper.GetString(LevelKey)).Msg("invalid log level, using info")
	}
}

func newLogger(out io.Writer, format string, noColor bool) zerolog.Logger {
	if format == "json" {
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}).With().Timestamp().Logger()
}
