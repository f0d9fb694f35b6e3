package tlogger

import (
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	mu     sync.RWMutex
	base   log.Logger
	filter = level.AllowInfo()
	hlog   log.Logger
)

func init() {
	SetOutput(os.Stdout)
}

// SetOutput redirects every subsequent entry to w, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = log.NewLogfmtLogger(log.NewSyncWriter(w))
	rebuild()
}

// ApplyLogLevel applies the minimum logging level: all, debug, info (default), warn or error.
func ApplyLogLevel(lvl string) {
	mu.Lock()
	defer mu.Unlock()
	switch lvl {
	case "all":
		filter = level.AllowAll()
	case "debug":
		filter = level.AllowDebug()
	case "warn":
		filter = level.AllowWarn()
	case "error":
		filter = level.AllowError()
	default:
		filter = level.AllowInfo()
	}
	rebuild()
}

// ApplyVerbosity maps a -v counter to a level.
func ApplyVerbosity(v int) {
	switch v {
	case 0:
		ApplyLogLevel("info")
	case 1:
		ApplyLogLevel("debug")
	default:
		ApplyLogLevel("all")
	}
}

func rebuild() {
	hlog = level.NewFilter(log.With(base, "ts", log.DefaultTimestampUTC, "caller", log.Caller(6)), filter)
}

func logger() log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return hlog
}

// Debug add a log entry w/ Debug level
func Debug(keyvals ...interface{}) {
	level.Debug(logger()).Log(keyvals...)
}

// Info add a log entry w/ Info level
func Info(keyvals ...interface{}) {
	level.Info(logger()).Log(keyvals...)
}

// Warn add a log entry w/ Warn level
func Warn(keyvals ...interface{}) {
	level.Warn(logger()).Log(keyvals...)
}

// Error add a log entry w/ Error level
func Error(keyvals ...interface{}) {
	level.Error(logger()).Log(keyvals...)
}

// Notify reports a user-facing completion message, the terminal equivalent of a desktop notification.
func Notify(message string, keyvals ...interface{}) {
	level.Info(logger()).Log(append([]interface{}{"notify", message}, keyvals...)...)
}
