package llamaruntime

import "time"

// Inference defaults. Temperature/TopP/TopK follow the Qwen3 recommended
// non-thinking parameters, which also behave well on other instruct models.
const (
	DefaultContextSize   = 4096
	DefaultBatchSize     = 512
	DefaultNumGPULayers  = -1 // all layers
	DefaultNumThreads    = 4
	DefaultMaxTokens     = 1024
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.8
	DefaultTopK          = 20
	DefaultRepeatPenalty = 1.1
	DefaultTimeout       = 2 * time.Minute
)

// ModelConfig configures model loading.
type ModelConfig struct {
	// ModelPath is the path to the GGUF model file. Required.
	ModelPath string

	// ContextSize is the context window size in tokens.
	ContextSize int

	// BatchSize is the batch size for prompt processing.
	BatchSize int

	// NumGPULayers is the number of layers to offload to GPU (-1 = all).
	NumGPULayers int

	// NumThreads is the number of CPU threads for inference.
	NumThreads int

	// UseMMap enables memory-mapped model loading.
	UseMMap bool
}

// DefaultModelConfig returns a ModelConfig with sensible defaults.
// The caller must set ModelPath.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		ContextSize:  DefaultContextSize,
		BatchSize:    DefaultBatchSize,
		NumGPULayers: DefaultNumGPULayers,
		NumThreads:   DefaultNumThreads,
		UseMMap:      true,
	}
}

// InferenceParams controls one text generation call.
type InferenceParams struct {
	Prompt        string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	Timeout       time.Duration
}

// DefaultInferenceParams returns InferenceParams with sensible defaults.
// The caller must set Prompt.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
		TopP:          DefaultTopP,
		TopK:          DefaultTopK,
		RepeatPenalty: DefaultRepeatPenalty,
		Timeout:       DefaultTimeout,
	}
}

// ModelInfo describes a loaded model.
type ModelInfo struct {
	Path     string
	Name     string
	Size     int64
	LoadedAt time.Time
}
