package logsvc

import (
	"github.com/rollbar/rollbar-go"
)

// RollbarOptions configures the Rollbar reporter.
type RollbarOptions struct {
	Token       string
	Environment string
	Host        string
	CodeVersion string
}

// RollbarLogger reports to Rollbar and mirrors every line to a StdLogger.
type RollbarLogger struct {
	std *StdLogger
}

var _ Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *StdLogger, opts RollbarOptions) *RollbarLogger {
	rollbar.SetToken(opts.Token)
	rollbar.SetEnvironment(opts.Environment)
	if opts.Host != "" {
		rollbar.SetServerHost(opts.Host)
	}
	if opts.CodeVersion != "" {
		rollbar.SetCodeVersion(opts.CodeVersion)
	}
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close flushes pending reports.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}

// expected fmt: msg | error, map[string]interface{}
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	return append(newArgs, args...)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.std.Debug(msg, args...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.std.Info(msg, args...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.std.Warn(msg, args...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.std.Error(msg, args...)
}

// New picks the logger for the given token: Rollbar when set, std otherwise.
func New(std *StdLogger, opts RollbarOptions) Logger {
	if opts.Token == "" {
		return std
	}
	return NewRollbarLogger(std, opts)
}
