package logger

import (
	"log/slog"
	"os"
)

// Log is the process-wide logger. Usable at its zero-value default
// (debug level, stderr) before Init runs, so early startup errors are
// never silently dropped.
var Log = slog.New(defaultHandler(slog.LevelDebug))

func defaultHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05.000"))
			}
			return a
		},
	})
}

// EnvVar is the environment variable that selects the log level, in the
// style of the RUST_LOG directive the Rust predecessor of this server used.
const EnvVar = "BB_RUNNER_LOG"

// Init (re)configures the global logger from BB_RUNNER_LOG, defaulting to
// debug per the external interface.
func Init() {
	level := os.Getenv(EnvVar)
	if level == "" {
		level = "debug"
	}
	Log = slog.New(defaultHandler(parseLevel(level)))
	slog.SetDefault(Log)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { Log.Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { Log.Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { Log.Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { Log.Error(msg, args...) }
