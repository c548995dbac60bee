package util

import (
	"fmt"

	"github.com/pterm/pterm"
)

func init() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "02 Jan 15:04:05"
	pterm.DefaultLogger.MaxWidth = 1000
}

// Leveled logging functions backed by pterm prefixed printers.
// All output goes to stderr by default (pterm's default).

func LogTrace(format string, args ...interface{}) {
	pterm.DefaultLogger.Trace(fmt.Sprintf(format, args...))
}

func LogDebug(format string, args ...interface{}) {
	pterm.DefaultLogger.Debug(fmt.Sprintf(format, args...))
}

func LogInfo(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogSuccess(format string, args ...interface{}) {
	pterm.DefaultLogger.Info(fmt.Sprintf(format, args...))
}

func LogWarning(format string, args ...interface{}) {
	pterm.DefaultLogger.Warn(fmt.Sprintf(format, args...))
}

func LogError(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf(format, args...))
}

// LogCritical logs at error level with a CRITICAL prefix; pterm has no
// distinct critical level, so it is mapped onto Error with a marker —
// matching local.logLevel's "critical" option from the INI config.
func LogCritical(format string, args ...interface{}) {
	pterm.DefaultLogger.Error(fmt.Sprintf("[CRITICAL] "+format, args...))
}

// SetLevel configures the logger's minimum level from the config file's
// local.logLevel string (trace, debug, info, warn, error, critical).
func SetLevel(level string) {
	switch level {
	case "trace":
		pterm.DefaultLogger.Level = pterm.LogLevelTrace
	case "debug":
		pterm.DefaultLogger.Level = pterm.LogLevelDebug
	case "warn":
		pterm.DefaultLogger.Level = pterm.LogLevelWarn
	case "error", "critical":
		pterm.DefaultLogger.Level = pterm.LogLevelError
	default:
		pterm.DefaultLogger.Level = pterm.LogLevelInfo
	}
}

// EnableDebug configures the logger to show debug messages.
func EnableDebug() {
	pterm.DefaultLogger.Level = pterm.LogLevelDebug
}
