// Package symlog is the logging facade used throughout go-symbolizer. It
// wraps logrus the way lxd-export/core/logger wraps it: a small
// mutex-free* struct around a configured *logrus.Logger, with level-named
// helper methods instead of callers reaching for logrus.Fields directly.
//
// *logrus.Logger is already safe for concurrent use; go-symbolizer doesn't
// need its own mutex on top since every call site is serialized by the
// façade's own single-flight contract (see symbolizer.go).
package symlog

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// Logger is the leveled logger used by every internal package. The zero
// value is not usable; construct one with New.
type Logger struct {
	entry *logrus.Entry
}

// New builds a Logger writing to w (colorized when w is a terminal, via
// go-colorable, the same package lxd uses for its CLI-facing output). A
// fresh correlation id, one per Logger, is attached to every line it
// writes. The internal packages all log through Default, so every
// Symbolizer instance in a process shares that one id; the id does not
// tell instances apart.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(wrapColorable(w))
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)

	return &Logger{entry: l.WithField("session", uuid.NewString())}
}

// wrapColorable applies go-colorable's Windows-console translation when w
// is a real file (go-colorable only has work to do for *os.File; on POSIX
// it's a passthrough regardless), and leaves any other io.Writer (a test's
// bytes.Buffer, a log-rotation file wrapper) untouched rather than
// silently redirecting it to stderr.
func wrapColorable(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok {
		return colorable.NewColorable(f)
	}
	return w
}

// SetDebug toggles debug-level verbosity, the Go equivalent of flipping
// SANSYMTOOL_DBG_START_SUBPROCESS at compile time.
func (l *Logger) SetDebug(on bool) {
	if on {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Default is used by packages that don't have a Logger threaded into them
// explicitly (mirrors the original library's use of a single process-wide
// diagnostic stream on stderr).
var Default = New(os.Stderr)
