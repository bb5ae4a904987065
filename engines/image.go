package engines

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"zexplorer/core"
	"zexplorer/sdruntime"
)

// ImageEngine adapts the stable-diffusion runtime to the workflow's
// interface. Like the text adapter, loading is lazy through the residency
// manager; loading the image model evicts the text model if resident.
type ImageEngine struct {
	res    *Residency
	cfg    *core.Config
	logger *zap.Logger

	// sdctx is non-nil only while SlotImage is occupied. Written during
	// load/unload under the residency mutex and read only while a lease is
	// held, so eviction by a concurrent batch cannot null it mid-call.
	sdctx *sdruntime.Context
}

// NewImageEngine creates the adapter. Nothing is loaded until the first call.
func NewImageEngine(cfg *core.Config, res *Residency, logger *zap.Logger) *ImageEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageEngine{res: res, cfg: cfg, logger: logger}
}

// acquire populates the image slot if needed and leases it for one synthesis
// call. The caller must invoke the returned release when the call finishes.
func (e *ImageEngine) acquire() (func(), error) {
	return e.res.Acquire(SlotImage,
		func() error {
			if e.cfg.SDModelPath == "" {
				return fmt.Errorf("engines: image synthesis requires SD_MODEL_PATH")
			}
			e.logger.Info("loading image model",
				zap.String("path", e.cfg.SDModelPath),
				zap.String("backend", sdruntime.BackendInfo()),
			)
			sdctx, err := sdruntime.LoadContext(e.cfg.SDModelPath)
			if err != nil {
				return err
			}
			e.sdctx = sdctx
			return nil
		},
		func() error {
			sdctx := e.sdctx
			e.sdctx = nil
			if sdctx == nil {
				return nil
			}
			e.logger.Info("unloading image model")
			return sdctx.Close()
		},
	)
}

// Synthesize generates one image and writes it to the output directory as a
// PNG. The synthesis deadline is bounded by the configured SD timeout.
func (e *ImageEngine) Synthesize(ctx context.Context, params core.SynthesisParams) (core.SynthesisOutput, error) {
	release, err := e.acquire()
	if err != nil {
		return core.SynthesisOutput{}, err
	}
	defer release()

	genCtx := ctx
	if e.cfg.SDTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, e.cfg.SDTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.sdctx.Generate(genCtx, sdruntime.GenerateParams{
		Prompt:         params.Prompt,
		NegativePrompt: e.cfg.SDNegativePrompt,
		Width:          params.Width,
		Height:         params.Height,
		Steps:          e.cfg.SDSteps,
		CFGScale:       e.cfg.SDCFGScale,
		Seed:           params.Seed,
		OnStep:         sdruntime.StepFunc(params.OnStep),
	})
	if err != nil {
		return core.SynthesisOutput{}, err
	}

	path, err := e.writeImage(result.ImageData)
	if err != nil {
		return core.SynthesisOutput{}, err
	}

	e.logger.Info("image synthesized",
		zap.String("path", path),
		zap.Int64("seed", result.Seed),
		zap.Int("width", result.Width),
		zap.Int("height", result.Height),
		zap.Duration("took", time.Since(start)),
	)
	return core.SynthesisOutput{Path: path}, nil
}

// writeImage persists PNG bytes under the output directory with a
// timestamped, collision-free name.
func (e *ImageEngine) writeImage(data []byte) (string, error) {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("engines: creating output dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.png",
		time.Now().Format("20060102_150405"),
		uuid.NewString()[:8],
	)
	path := filepath.Join(e.cfg.OutputDir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("engines: writing image: %w", err)
	}
	return path, nil
}

// Unload releases the image model's memory. Idempotent.
func (e *ImageEngine) Unload() error {
	return e.res.Unload(SlotImage)
}

var _ core.ImageEngine = (*ImageEngine)(nil)
