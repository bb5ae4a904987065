package sdruntime

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// Context is the handle for one loaded stable-diffusion model. The process
// keeps at most one Context alive at a time (the model competes with the
// text engine for GPU memory); the residency manager above this layer owns
// that decision.
//
// All methods are safe for concurrent use; generations serialize on the
// single underlying model.
type Context struct {
	mu     sync.Mutex
	handle *sdHandle
	path   string
	closed bool
}

// LoadContext loads a stable-diffusion model (.safetensors, .ckpt or .gguf).
func LoadContext(modelPath string) (*Context, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("%w: model path is empty", ErrModelNotFound)
	}
	if _, err := os.Stat(modelPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("%w: cannot access %s: %v", ErrModelLoadFailed, modelPath, err)
	}

	handle, err := loadContextImpl(modelPath)
	if err != nil {
		return nil, err
	}
	return &Context{handle: handle, path: modelPath}, nil
}

// Generate synthesizes one image. Params are validated first; a seed of -1
// is resolved to a fresh random seed and the resolved value is echoed in the
// result. params.OnStep, when set, receives one callback per denoising step.
//
// ctx is checked before generation starts; the synthesis itself is treated
// as an atomic, uninterruptible unit of work.
func (c *Context) Generate(ctx context.Context, params GenerateParams) (*GenerateResult, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	if params.Seed < 0 {
		params.Seed = RandomSeed()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrContextClosed
	}

	result, err := generateImageImpl(c.handle, params)
	if err != nil {
		return nil, err
	}

	if err := ValidateImageData(result.ImageData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	result.Seed = params.Seed
	return result, nil
}

// ModelPath returns the path the context was loaded from.
func (c *Context) ModelPath() string {
	return c.path
}

// Close frees the model's backing memory deterministically. Idempotent.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.handle != nil {
		freeContextImpl(c.handle)
		c.handle = nil
	}
	return nil
}

// BackendInfo reports which synthesis backend this binary was built with.
func BackendInfo() string {
	return backendInfoImpl()
}
