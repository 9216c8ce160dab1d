// Package wavslog wraps zerolog with the service/workflow/digest/event_id
// child-logger constructors spec §7 requires ("Logs are structured with
// service/workflow/digest/event_id fields"). The pattern is carried over
// from the sibling example repo's pkg/log (WithComponent/WithServiceID/...),
// since the teacher repo itself only logs through the standard library.
package wavslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-wide root logger, initialized via Init.
var Logger zerolog.Logger

func init() {
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Level mirrors the zerolog levels WAVS configures at startup.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how the root logger renders output.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init (re)configures the package-wide root logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.JSONOutput {
		Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with a subsystem name
// (e.g. "trigger", "dispatcher", "aggregator").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithService returns a child logger tagged with a service ID.
func WithService(l zerolog.Logger, serviceID string) zerolog.Logger {
	return l.With().Str("service_id", serviceID).Logger()
}

// WithWorkflow returns a child logger tagged with a workflow ID.
func WithWorkflow(l zerolog.Logger, workflowID string) zerolog.Logger {
	return l.With().Str("workflow_id", workflowID).Logger()
}

// WithDigest returns a child logger tagged with a component digest.
func WithDigest(l zerolog.Logger, digest string) zerolog.Logger {
	return l.With().Str("digest", digest).Logger()
}

// WithEventID returns a child logger tagged with an event ID.
func WithEventID(l zerolog.Logger, eventID string) zerolog.Logger {
	return l.With().Str("event_id", eventID).Logger()
}
