package errors

import (
	"fmt"
	"runtime/debug"
)

// RecoverToError runs fn and converts any panic it raises into a returned
// error, stack trace attached, instead of letting it cross fn's caller.
// Adapted from this package's panic-recovery machinery for a single call
// boundary — this module has no distributed error context, correlation
// ids, or circuit breaker for a panic to flow through, just one status
// event to report it on.
func RecoverToError(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
	return nil
}
