// Package logsvc provides the application logger.
//
// Args after the message follow one convention across implementations:
// errors, map[string]interface{} of context fields, or plain values.
package logsvc

import (
	"io"
	"log"
	"os"
	"strings"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// StdLogger writes to a standard library logger with a level prefix.
type StdLogger struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger, debug bool) *StdLogger {
	if std == nil {
		std = log.New(os.Stdout, "", log.LstdFlags)
	}
	return &StdLogger{std: std, debug: debug}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *StdLogger {
	return &StdLogger{std: log.New(io.Discard, "", 0)}
}

func (l *StdLogger) print(level, msg string, args []interface{}) {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] ")
	b.WriteString(msg)
	l.std.Println(b.String())
	for _, arg := range args {
		l.std.Printf("  %+v\n", arg)
	}
}

func (l *StdLogger) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.print("DEBUG", msg, args)
	}
}

func (l *StdLogger) Info(msg string, args ...interface{})  { l.print("INFO", msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.print("WARN", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{}) { l.print("ERROR", msg, args) }
