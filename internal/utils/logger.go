package utils

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

var currentLogLevel LogLevel = LevelInfo

func logLevelToString(level LogLevel) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// SetLogLevel sets the global log level for the application.
func SetLogLevel(levelString string) {
	switch strings.ToUpper(levelString) {
	case "DEBUG":
		currentLogLevel = LevelDebug
	case "INFO":
		currentLogLevel = LevelInfo
	case "WARNING", "WARN":
		currentLogLevel = LevelWarning
	case "ERROR":
		currentLogLevel = LevelError
	case "FATAL":
		currentLogLevel = LevelFatal
	default:
		currentLogLevel = LevelInfo
		LogWarnf("Unknown log level '%s', defaulting to INFO", levelString)
	}
}

func logInternal(level LogLevel, message string) {
	if level >= currentLogLevel {
		timestamp := time.Now().Format("2006-01-02 15:04:05.000")
		log.Printf("%s [%s] %s\n", timestamp, logLevelToString(level), message)
	}
}

func LogDebug(args ...interface{}) {
	logInternal(LevelDebug, fmt.Sprint(args...))
}

func LogDebugf(format string, args ...interface{}) {
	logInternal(LevelDebug, fmt.Sprintf(format, args...))
}

func LogInfo(args ...interface{}) {
	logInternal(LevelInfo, fmt.Sprint(args...))
}

func LogInfof(format string, args ...interface{}) {
	logInternal(LevelInfo, fmt.Sprintf(format, args...))
}

func LogWarn(args ...interface{}) {
	logInternal(LevelWarning, fmt.Sprint(args...))
}

func LogWarnf(format string, args ...interface{}) {
	logInternal(LevelWarning, fmt.Sprintf(format, args...))
}

func LogError(args ...interface{}) {
	logInternal(LevelError, fmt.Sprint(args...))
}

func LogErrorf(format string, args ...interface{}) {
	logInternal(LevelError, fmt.Sprintf(format, args...))
}

func LogFatal(args ...interface{}) {
	logInternal(LevelFatal, fmt.Sprint(args...))
	os.Exit(1)
}

func LogFatalf(format string, args ...interface{}) {
	logInternal(LevelFatal, fmt.Sprintf(format, args...))
	os.Exit(1)
}
