package llamaruntime

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Model is the high-level handle for one loaded llama.cpp model. Unlike a
// pooled inference server, this runtime keeps exactly one model resident at
// a time: the process shares GPU memory with the image engine, so the
// residency manager above this layer decides when the model lives and dies.
//
// All methods are safe for concurrent use; inference calls serialize on the
// single underlying context.
type Model struct {
	mu     sync.Mutex
	handle *modelHandle
	config ModelConfig
	info   ModelInfo
	closed bool
}

// Load loads a GGUF model from disk. It validates the path eagerly so
// configuration mistakes surface before the first generation request.
func Load(config ModelConfig) (*Model, error) {
	if config.ModelPath == "" {
		return nil, &RuntimeError{Op: "Load", Message: "ModelPath is required", Err: ErrModelNotFound}
	}

	absPath, err := filepath.Abs(config.ModelPath)
	if err != nil {
		return nil, &RuntimeError{Op: "Load", Message: "invalid model path", Err: err}
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RuntimeError{Op: "Load", Message: absPath, Err: ErrModelNotFound}
		}
		return nil, &RuntimeError{Op: "Load", Message: "cannot access model file", Err: err}
	}

	if config.ContextSize <= 0 {
		config.ContextSize = DefaultContextSize
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.NumGPULayers == 0 {
		config.NumGPULayers = DefaultNumGPULayers
	}
	if config.NumThreads <= 0 {
		config.NumThreads = DefaultNumThreads
	}
	config.ModelPath = absPath

	handle, err := loadModelImpl(config)
	if err != nil {
		return nil, &RuntimeError{Op: "Load", Message: "model load failed", Err: err}
	}

	return &Model{
		handle: handle,
		config: config,
		info: ModelInfo{
			Path:     absPath,
			Name:     filepath.Base(absPath),
			Size:     fileInfo.Size(),
			LoadedAt: time.Now(),
		},
	}, nil
}

// Infer generates text for the given parameters. The ctx controls
// cancellation; params.Timeout bounds the generation itself.
func (m *Model) Infer(ctx context.Context, params InferenceParams) (string, error) {
	if params.MaxTokens <= 0 {
		params.MaxTokens = DefaultMaxTokens
	}
	if params.Temperature <= 0 {
		params.Temperature = DefaultTemperature
	}
	if params.TopP <= 0 {
		params.TopP = DefaultTopP
	}
	if params.TopK <= 0 {
		params.TopK = DefaultTopK
	}
	if params.RepeatPenalty <= 0 {
		params.RepeatPenalty = DefaultRepeatPenalty
	}
	if params.Timeout <= 0 {
		params.Timeout = DefaultTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", &RuntimeError{Op: "Infer", Message: "model is closed", Err: ErrClosed}
	}

	inferCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	text, err := inferTextImpl(inferCtx, m.handle, params)
	if err != nil {
		return "", &RuntimeError{Op: "Infer", Message: "generation failed", Err: err}
	}
	return text, nil
}

// Info returns information about the loaded model.
func (m *Model) Info() ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Close frees the model's backing memory deterministically. Idempotent.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.handle != nil {
		freeModelImpl(m.handle)
		m.handle = nil
	}
	return nil
}

// BackendInfo reports which inference backend this binary was built with.
func BackendInfo() string {
	return backendInfoImpl()
}
