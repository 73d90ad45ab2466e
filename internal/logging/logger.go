package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init initializes the global logger with configuration from environment variables.
// SHOPBOT_LOG_LEVEL controls the log level: trace, debug, info, warn, error (default: info)
// SHOPBOT_LOG_FORMAT selects console (default) or json output. Lambda
// defaults to json so CloudWatch receives one event per line.
func Init() {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv("SHOPBOT_LOG_LEVEL")))

	format := os.Getenv("SHOPBOT_LOG_FORMAT")
	if format == "" && os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		format = "json"
	}
	log.Logger = zerolog.New(writerFor(format, os.Stderr)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func writerFor(format string, out io.Writer) io.Writer {
	if format == "json" {
		return out
	}
	return zerolog.ConsoleWriter{Out: out}
}
