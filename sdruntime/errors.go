// Package sdruntime provides Go bindings to stable-diffusion.cpp for local
// image synthesis. Build with the "sd" tag and CGo to link the real library;
// the default build uses a stub that fails generation with a clear error.
package sdruntime

import "errors"

// Sentinel errors for SD runtime operations.
var (
	// Model-related errors
	ErrModelNotFound   = errors.New("sdruntime: model file not found")
	ErrModelLoadFailed = errors.New("sdruntime: failed to load model")

	// Generation errors
	ErrGenerationFailed  = errors.New("sdruntime: image generation failed")
	ErrGenerationTimeout = errors.New("sdruntime: image generation timed out")

	// Input validation errors
	ErrInvalidPrompt = errors.New("sdruntime: invalid prompt")
	ErrInvalidParams = errors.New("sdruntime: invalid generation parameters")

	// Lifecycle errors
	ErrContextClosed = errors.New("sdruntime: context is closed")
)
