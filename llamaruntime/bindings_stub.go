//go:build !llama

// Stub implementation for builds without the llama.cpp library.
// Build with: go build (no tags). Real inference requires: go build -tags llama
package llamaruntime

import (
	"context"
	"fmt"
	"sync/atomic"
)

// stubHandleCounter generates unique IDs for stub handles.
var stubHandleCounter uint64

// modelHandle is an opaque handle to a loaded model. The stub variant only
// tracks identity; the CGo variant wraps llama.cpp pointers.
type modelHandle struct {
	id        uint64
	modelPath string
	valid     bool
}

// loadModelImpl validates the model path but does not load anything.
func loadModelImpl(config ModelConfig) (*modelHandle, error) {
	return &modelHandle{
		id:        atomic.AddUint64(&stubHandleCounter, 1),
		modelPath: config.ModelPath,
		valid:     true,
	}, nil
}

// inferTextImpl fails: stub mode cannot generate text.
func inferTextImpl(_ context.Context, h *modelHandle, _ InferenceParams) (string, error) {
	if h == nil || !h.valid {
		return "", fmt.Errorf("%w: handle is nil or invalid", ErrInferenceFail)
	}
	return "", fmt.Errorf("%w: llama.cpp library not available (stub mode); "+
		"build with CGO and the 'llama' tag to enable local inference", ErrInferenceFail)
}

// freeModelImpl marks the handle invalid.
func freeModelImpl(h *modelHandle) {
	if h == nil {
		return
	}
	h.valid = false
}

func backendInfoImpl() string {
	return "stub (no llama.cpp library linked)"
}
