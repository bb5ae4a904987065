//go:build !sd

// Stub implementation for builds without the stable-diffusion.cpp library.
// Build with: go build (no tags). Real synthesis requires: go build -tags sd
package sdruntime

import (
	"fmt"
	"sync/atomic"
)

// stubHandleCounter generates unique IDs for stub handles.
var stubHandleCounter uint64

// sdHandle is an opaque handle to a loaded SD model. The stub variant only
// tracks identity; the CGo variant wraps the sd_ctx_t pointer.
type sdHandle struct {
	id        uint64
	modelPath string
	valid     bool
}

func loadContextImpl(modelPath string) (*sdHandle, error) {
	return &sdHandle{
		id:        atomic.AddUint64(&stubHandleCounter, 1),
		modelPath: modelPath,
		valid:     true,
	}, nil
}

func generateImageImpl(h *sdHandle, _ GenerateParams) (*GenerateResult, error) {
	if h == nil || !h.valid {
		return nil, fmt.Errorf("%w: handle is nil or invalid", ErrGenerationFailed)
	}
	return nil, fmt.Errorf("%w: stable-diffusion.cpp library not available (stub mode); "+
		"build with CGO and the 'sd' tag to enable image generation", ErrGenerationFailed)
}

func freeContextImpl(h *sdHandle) {
	if h == nil {
		return
	}
	h.valid = false
}

func backendInfoImpl() string {
	return "stub (no stable-diffusion.cpp library linked)"
}
