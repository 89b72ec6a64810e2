package postsync

import (
	"strings"

	"github.com/labstack/gommon/log"
)

// Logger is the sink the engine reports its progress to. echo.Logger and
// *log.Logger from labstack/gommon both satisfy it.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// discardLogger is used when no logger is configured.
func discardLogger() Logger {
	l := log.New("postsync")
	l.SetLevel(log.OFF)
	return l
}

// scopedLogger prefixes every line, so that the lines logged while syncing one
// post of a bulk run can be told apart.
type scopedLogger struct {
	Logger
	prefix string
}

func withScope(l Logger, prefix string) Logger {
	return scopedLogger{Logger: l, prefix: strings.ReplaceAll(prefix, "%", "%%") + " "}
}

func (l scopedLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Debugf(l.prefix+format, args...)
}

func (l scopedLogger) Infof(format string, args ...interface{}) {
	l.Logger.Infof(l.prefix+format, args...)
}

func (l scopedLogger) Warnf(format string, args ...interface{}) {
	l.Logger.Warnf(l.prefix+format, args...)
}

func (l scopedLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Errorf(l.prefix+format, args...)
}
