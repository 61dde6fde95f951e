// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine and call wrappers
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

// goroutineCounter tracks spawned goroutines for diagnostics
var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but don't crash the process.
//
// Example:
//
//	common.SafeGo(logger, "signalWatcher", func() {
//	    <-sigCh
//	    orchestrator.Stop()
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logPanic(logger, name, r, GetStackTrace())
			}
		}()

		fn()
	}()
}

// PanicError is returned by SafeCall when the wrapped function panicked
type PanicError struct {
	Name  string
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Name, e.Value)
}

// SafeCall runs fn on the current goroutine and converts a panic into a *PanicError.
// Use it where a failure must be reported as a value instead of unwinding the caller.
func SafeCall(logger arbor.ILogger, name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := GetStackTrace()
			logPanic(logger, name, r, stack)
			err = &PanicError{Name: name, Value: r, Stack: stack}
		}
	}()

	return fn()
}

func logPanic(logger arbor.ILogger, name string, panicVal interface{}, stackTrace string) {
	if logger != nil {
		logger.Error().
			Str("goroutine", name).
			Str("panic", fmt.Sprintf("%v", panicVal)).
			Str("stack", stackTrace).
			Msg("Recovered from panic - continuing")
		return
	}
	fmt.Fprintf(os.Stderr, "PANIC in %s: %v\n%s\n", name, panicVal, stackTrace)
}
