package alsa

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

type loggerHolder struct {
	logrus.FieldLogger
}

var currentLogger atomic.Pointer[loggerHolder]

func init() {
	currentLogger.Store(&loggerHolder{logrus.StandardLogger()})
}

// SetLogger replaces the logger used for plugin and card definition diagnostics.
// A nil logger restores the logrus standard logger. It is safe to call while
// streams, mixers or a definition watcher are running.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}

	currentLogger.Store(&loggerHolder{l})
}

func logger() logrus.FieldLogger {
	return currentLogger.Load().FieldLogger
}
