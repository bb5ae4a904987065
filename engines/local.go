package engines

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"zexplorer/core"
	"zexplorer/llamaruntime"
)

// localBackend runs inference through the in-process llama.cpp runtime.
type localBackend struct {
	model  *llamaruntime.Model
	logger *zap.Logger
}

func newLocalBackend(cfg *core.Config, logger *zap.Logger) (*localBackend, error) {
	if cfg.LLMModelPath == "" {
		return nil, fmt.Errorf("engines: local LLM mode requires LLM_PATH")
	}
	if _, err := os.Stat(cfg.LLMModelPath); err != nil {
		return nil, fmt.Errorf("engines: LLM model file: %w", err)
	}

	logger.Info("loading local text model", zap.String("path", cfg.LLMModelPath))

	modelCfg := llamaruntime.DefaultModelConfig()
	modelCfg.ModelPath = cfg.LLMModelPath

	model, err := llamaruntime.Load(modelCfg)
	if err != nil {
		return nil, err
	}

	info := model.Info()
	logger.Info("local text model loaded",
		zap.String("name", info.Name),
		zap.Int64("size_bytes", info.Size),
		zap.String("backend", llamaruntime.BackendInfo()),
	)
	return &localBackend{model: model, logger: logger}, nil
}

func (b *localBackend) generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	params := llamaruntime.DefaultInferenceParams()
	params.Prompt = prompt
	params.MaxTokens = maxTokens
	return b.model.Infer(ctx, params)
}

func (b *localBackend) close() error {
	b.logger.Info("unloading local text model")
	return b.model.Close()
}
