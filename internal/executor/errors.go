package executor

import (
	"fmt"
	"runtime/debug"
)

// AgentError reports the failure that ended one execution.
type AgentError struct {
	Agent string
	Phase string
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed during %s: %v", e.Agent, e.Phase, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// PanicError is a recovered panic from agent code.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover runs fn and converts a panic into a *PanicError.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
