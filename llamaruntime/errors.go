// Package llamaruntime provides Go bindings to llama.cpp for local text
// generation. Build with the "llama" tag and CGo to link the real library;
// the default build uses a stub that fails inference with a clear error.
package llamaruntime

import (
	"errors"
	"fmt"
)

// Sentinel errors for llama runtime operations.
var (
	ErrModelNotFound  = errors.New("llamaruntime: model file not found")
	ErrModelLoadFail  = errors.New("llamaruntime: failed to load model")
	ErrModelNotLoaded = errors.New("llamaruntime: no model loaded")
	ErrInferenceFail  = errors.New("llamaruntime: inference failed")
	ErrTimeout        = errors.New("llamaruntime: inference timed out")
	ErrClosed         = errors.New("llamaruntime: model is closed")
)

// RuntimeError wraps a failure with the operation that produced it.
type RuntimeError struct {
	Op      string // operation, e.g. "Load", "Infer"
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llamaruntime: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("llamaruntime: %s: %s", e.Op, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
