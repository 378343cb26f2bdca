package logging

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// PanicError is a recovered panic turned into an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverTo converts a panic into a *PanicError stored in *errp and logs the
// stack. Use it deferred:
//
//	defer logging.RecoverTo(log, &err)
//
// Nothing happens if the surrounding function did not panic.
func RecoverTo(log *slog.Logger, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	pe := &PanicError{Value: r, Stack: debug.Stack()}
	if log != nil {
		log.Error("recovered from panic", "panic", fmt.Sprint(r), "stack", string(pe.Stack))
	}
	*errp = pe
}
