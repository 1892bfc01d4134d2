package testutil

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

// Logger is a core.Logger writing to the test log. It keeps the messages
// logged at warn level and above so tests can assert nothing went wrong.
type Logger struct {
	mu       sync.Mutex
	sugar    *zap.SugaredLogger
	done     bool // the test log is closed once the test ends
	problems []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t *testing.T) *Logger {
	l := &Logger{sugar: zaptest.NewLogger(t).Sugar()}
	t.Cleanup(func() {
		l.mu.Lock()
		l.done = true
		l.mu.Unlock()
	})
	return l
}

func (l *Logger) log(level string, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level != "debug" && level != "info" {
		l.problems = append(l.problems, fmt.Sprintf("%s: %s", level, msg))
	}
	if l.done {
		return
	}
	switch level {
	case "debug":
		l.sugar.Debugw(msg, "args", args)
	case "info":
		l.sugar.Infow(msg, "args", args)
	case "warn":
		l.sugar.Warnw(msg, "args", args)
	default:
		l.sugar.Errorw(msg, "args", args)
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }

// Fatal records the message without exiting.
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Problems returns the warn, error & fatal messages logged so far.
func (l *Logger) Problems() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.problems...)
}
