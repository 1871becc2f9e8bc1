package util

import (
	"fmt"
	"os"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	currentLogLevel = LevelInfo
	useColors       = true
)

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		currentLogLevel = LevelDebug
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		currentLogLevel = LevelError
	}
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	useColors = enabled
}

func colorize(color string, text string) string {
	if !useColors {
		return text
	}
	return color + text + "\033[0m"
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	if currentLogLevel <= LevelDebug {
		fmt.Fprintf(os.Stderr, "%s [DEBUG] %s\n", colorize("\033[90m", timestamp()), fmt.Sprintf(format, args...))
	}
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	if currentLogLevel <= LevelInfo {
		fmt.Fprintf(os.Stderr, "%s [INFO]  %s\n", colorize("\033[36m", timestamp()), fmt.Sprintf(format, args...))
	}
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	if currentLogLevel <= LevelWarn {
		fmt.Fprintf(os.Stderr, "%s [WARN]  %s\n", colorize("\033[33m", timestamp()), fmt.Sprintf(format, args...))
	}
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	if currentLogLevel <= LevelError {
		fmt.Fprintf(os.Stderr, "%s [ERROR] %s\n", colorize("\033[31m", timestamp()), fmt.Sprintf(format, args...))
	}
}

// SuccessLog logs success messages (shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	if currentLogLevel <= LevelInfo {
		fmt.Fprintf(os.Stderr, "%s [OK]    %s\n", colorize("\033[32m", timestamp()), fmt.Sprintf(format, args...))
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
