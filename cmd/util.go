package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/doigate/internal/core"
	"github.com/darmiel/doigate/pkg/client"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()

	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✖")
)

// BeQuietError is returned when the error was already reported to the user.
type BeQuietError struct{}

func (BeQuietError) Error() string { return "command failed" }

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s %s", greenCheck, fmt.Sprintf(format, args...))
}

// logError reports err with its correlation ID and returns BeQuietError.
func logError(err error, correlation, msg string) error {
	ev := log.Error().Err(err)
	if correlation != "" {
		ev = ev.Str("correlation_id", correlation)
	}
	if errors.Is(err, client.ErrInvalidSession) {
		ev.Msgf("%s %s: session expired or revoked, run 'doigate login' again", redCross, msg)
		return BeQuietError{}
	}
	var apiErr client.APIError
	if errors.As(err, &apiErr) && apiErr.NotApplicable() {
		log.Warn().Str("correlation_id", correlation).Msgf("%s: %s", msg, apiErr.Message)
		return BeQuietError{}
	}
	ev.Msgf("%s %s", redCross, msg)
	return BeQuietError{}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func stateColor(s core.State) string {
	switch s {
	case core.StateRegistered:
		return color.GreenString(string(s))
	case core.StateReserved:
		return color.CyanString(string(s))
	case core.StateConflict:
		return color.RedString(string(s))
	default:
		return faint(string(s))
	}
}

func yesNo(b bool) string {
	if b {
		return green("yes")
	}
	return faint("no")
}
