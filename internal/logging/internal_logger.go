package logging

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// InternalLogger receives the per-object progress of batch runs (e.g. running a
// lifecycle action over every object). It decouples the runners from where the
// lines end up: the structured log, the terminal, or both.
type InternalLogger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

var _ InternalLogger = (*ZLogger)(nil)

type ZLogger struct {
	ZLog zerolog.Logger
}

func NewZLogger(zlog zerolog.Logger) ZLogger {
	return ZLogger{ZLog: zlog}
}

func (l ZLogger) Info(format string, args ...any) {
	l.ZLog.Info().Msgf(format, args...)
}

func (l ZLogger) Warn(format string, args ...any) {
	l.ZLog.Warn().Msgf(format, args...)
}

func (l ZLogger) Error(format string, args ...any) {
	l.ZLog.Error().Msgf(format, args...)
}

var _ InternalLogger = (*ConsoleLogger)(nil)

// ConsoleLogger prints one colored line per message.
type ConsoleLogger struct {
	Out io.Writer
}

func NewConsoleLogger(out io.Writer) ConsoleLogger {
	return ConsoleLogger{Out: out}
}

func (l ConsoleLogger) Info(format string, args ...any) {
	_, _ = fmt.Fprintf(l.Out, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func (l ConsoleLogger) Warn(format string, args ...any) {
	_, _ = fmt.Fprintf(l.Out, "%s %s\n", color.YellowString("-"), fmt.Sprintf(format, args...))
}

func (l ConsoleLogger) Error(format string, args ...any) {
	_, _ = fmt.Fprintf(l.Out, "%s %s\n", color.RedString("✗"), fmt.Sprintf(format, args...))
}

var _ InternalLogger = (*MultiLogger)(nil)

type MultiLogger struct {
	Loggers []InternalLogger
}

func NewMultiLogger(loggers ...InternalLogger) MultiLogger {
	return MultiLogger{Loggers: loggers}
}

func (l MultiLogger) Info(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Info(format, args...)
	}
}

func (l MultiLogger) Warn(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Warn(format, args...)
	}
}

func (l MultiLogger) Error(format string, args ...any) {
	for _, logger := range l.Loggers {
		logger.Error(format, args...)
	}
}
