package core

import "errors"

// Sentinel errors for the generation pipeline. Engine and store failures are
// wrapped with these so callers can classify without string matching.
var (
	// ErrInvalidRequest indicates a GenerationRequest failed validation.
	ErrInvalidRequest = errors.New("core: invalid generation request")

	// ErrStoreUnavailable indicates the variable store could not be read.
	// This is a batch-fatal failure: the workflow returns success=false.
	ErrStoreUnavailable = errors.New("core: variable store unavailable")

	// ErrNoValues indicates variable generation produced an empty value list.
	// The offending token is left unresolved in the prompt.
	ErrNoValues = errors.New("core: no values generated for variable")

	// ErrEnhancementFailed indicates the enhancement step failed. Enhancement
	// failure is never fatal; the original prompt is used instead.
	ErrEnhancementFailed = errors.New("core: prompt enhancement failed")
)
