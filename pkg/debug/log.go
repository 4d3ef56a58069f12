// Package debug routes runtime trace output of the scheduler and reactive
// packages to a logger.
package debug

import (
	"log"

	"github.com/recera/weave/pkg/reactive"
	"github.com/recera/weave/pkg/scheduler"
)

// EnableLogging enables debug logging for scheduler and reactive packages.
// A nil logger means the standard logger.
func EnableLogging(l *log.Logger) {
	if l == nil {
		l = log.Default()
	}
	logFn := func(args ...interface{}) {
		l.Println(args...)
	}

	scheduler.SetDebugLog(logFn)
	reactive.SetDebugLog(logFn)
}

// DisableLogging turns trace output off again
func DisableLogging() {
	scheduler.SetDebugLog(nil)
	reactive.SetDebugLog(nil)
}

