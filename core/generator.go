package core

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// enhancementSeparator splits an inline prompt into (base, instruction):
// "a cat > make it magical" enhances "a cat" with "make it magical".
const enhancementSeparator = " > "

// Generator is the generation workflow organism. It drives a two-phase
// pipeline for each request:
//
//	Phase 1 (text): variable substitution and optional enhancement for every
//	requested image, producing one fully-resolved prompt per image.
//	Phase 2 (image): synthesis of every prepared prompt, in order.
//
// Between the phases the text engine is unloaded when the batch used it more
// than trivially (count > 1 or enhancement), freeing resident memory for the
// image engine. Batches pay one unload/reload cycle instead of thrashing per
// image.
//
// Generate runs synchronously on the calling goroutine and reports progress
// through the supplied callback. A Generator is safe for concurrent use;
// concurrent calls are independent batches that only share the engine
// residency slots behind the adapters.
type Generator struct {
	store   VariableStore
	text    TextEngine
	image   ImageEngine
	history HistoryRecorder
	logger  *zap.Logger

	valueCount int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithHistory attaches an optional history recorder. Entries are recorded
// per image attempt, best-effort.
func WithHistory(h HistoryRecorder) GeneratorOption {
	return func(g *Generator) { g.history = h }
}

// WithValueCount overrides how many candidate values are requested when a
// missing variable is generated. Default is DefaultVariableValueCount.
func WithValueCount(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.valueCount = n
		}
	}
}

// WithRandSource replaces the random source used for value picks and seeds.
// Intended for tests that need deterministic substitution.
func WithRandSource(src rand.Source) GeneratorOption {
	return func(g *Generator) { g.rng = rand.New(src) }
}

// NewGenerator wires a workflow from its collaborators. logger may be nil.
func NewGenerator(store VariableStore, text TextEngine, image ImageEngine, logger *zap.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		store:      store,
		text:       text,
		image:      image,
		logger:     logger,
		valueCount: DefaultVariableValueCount,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the full workflow for one request and returns the aggregate
// result. Engine and store failures never propagate: they are converted into
// recorded errors and error events here, at the workflow boundary. Progress
// events are delivered to onProgress (which may be nil) in emission order.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest, onProgress ProgressFunc) GenerationResult {
	g.logger.Info("generation started",
		zap.String("prompt", truncate(req.Prompt, 80)),
		zap.Int("count", req.Count),
		zap.Int("width", req.Width),
		zap.Int("height", req.Height),
		zap.Bool("enhance", req.Enhance),
	)

	var result GenerationResult

	g.emit(onProgress, StageStarting, "Initializing generation pipeline...", 5, nil)

	if err := req.Validate(); err != nil {
		return g.fail(onProgress, result, err)
	}

	vars, err := g.store.LoadAll()
	if err != nil {
		return g.fail(onProgress, result, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	g.emit(onProgress, StageLoadingVars,
		fmt.Sprintf("Loaded %d variables", len(vars)), 10, nil)

	// Inline " > " syntax wins only when the request did not already split
	// the prompt explicitly.
	basePrompt := req.Prompt
	instruction := req.EnhancementInstruction
	hasEnhancement := req.Enhance
	if strings.Contains(req.Prompt, enhancementSeparator) {
		parts := strings.SplitN(req.Prompt, enhancementSeparator, 2)
		basePrompt = strings.TrimSpace(parts[0])
		instruction = strings.TrimSpace(parts[1])
		hasEnhancement = true
	}

	// Phase 1: prepare one fully-resolved prompt per requested image.
	g.emit(onProgress, StagePhase1Complete,
		fmt.Sprintf("Phase 1: Generating %d prompt(s)...", req.Count), 15, nil)

	prompts := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		current := g.substituteVariables(ctx, basePrompt, vars, onProgress, true)

		// Variables generated during the first iteration become visible to
		// the rest of the batch.
		if i == 0 {
			if refreshed, err := g.store.LoadAll(); err == nil {
				vars = refreshed
			}
		}

		if hasEnhancement {
			full := current
			if instruction != "" {
				full = current + "\n\nEnhancement instruction: " + instruction
			}
			current = g.enhancePrompt(ctx, full, instruction, onProgress)
		}

		prompts = append(prompts, current)
	}
	result.FinalPrompts = prompts

	// Free resident memory for the image engine before phase 2.
	if req.Count > 1 || hasEnhancement {
		if err := g.text.Unload(); err != nil {
			g.logger.Warn("text engine unload failed", zap.Error(err))
		} else {
			g.emit(onProgress, StageLLMUnloaded,
				"LLM unloaded to free GPU memory", 35, nil)
		}
	}

	// Phase 2: synthesize every prepared prompt, in order. One image's
	// failure never aborts the batch.
	g.emit(onProgress, StageLoadingImageModel,
		"Phase 2: Loading image model...", 40, nil)

	correlationID := uuid.NewString()

	for i, prompt := range prompts {
		// The batch's 40-95% progress band, split evenly across images.
		basePct := 40 + (i*55)/req.Count
		perImage := 55 / req.Count

		g.emit(onProgress, StageFinalPrompt, prompt, basePct,
			map[string]any{"prompt": prompt, "index": i + 1, "total": req.Count})
		g.emit(onProgress, StageGeneratingImage,
			fmt.Sprintf("Generating image %d/%d...", i+1, req.Count), basePct,
			map[string]any{"prompt": truncate(prompt, 100)})

		var seed int64
		if req.Seed != nil {
			seed = *req.Seed
		} else {
			seed = g.randomSeed()
		}
		result.SeedsUsed = append(result.SeedsUsed, seed)

		started := time.Now()
		out, err := g.image.Synthesize(ctx, SynthesisParams{
			Prompt: prompt,
			Width:  req.Width,
			Height: req.Height,
			Seed:   seed,
			OnStep: func(step, total int) {
				if total <= 0 {
					return
				}
				stepPct := basePct + (step*perImage)/total
				g.emit(onProgress, StageDiffusionStep,
					fmt.Sprintf("Image %d/%d: step %d/%d", i+1, req.Count, step, total),
					stepPct, nil)
			},
		})
		elapsed := time.Since(started)

		if err != nil {
			msg := fmt.Sprintf("Image %d failed: %v", i+1, err)
			result.Errors = append(result.Errors, msg)
			g.emit(onProgress, StageError, msg, -1, nil)
			g.record(HistoryEntry{
				CorrelationID: correlationID,
				Prompt:        prompt,
				Seed:          seed,
				Width:         req.Width,
				Height:        req.Height,
				DurationMS:    elapsed.Milliseconds(),
				Status:        HistoryStatusError,
				ErrorMessage:  err.Error(),
			})
			continue
		}

		g.writeSidecar(out.Path, prompt)
		result.Images = append(result.Images, out.Path)
		g.emit(onProgress, StageImageSaved,
			fmt.Sprintf("Saved: %s", out.Path), basePct+perImage,
			map[string]any{"path": out.Path, "seed": seed, "prompt": prompt})
		g.record(HistoryEntry{
			CorrelationID: correlationID,
			Prompt:        prompt,
			Seed:          seed,
			Width:         req.Width,
			Height:        req.Height,
			ImagePath:     out.Path,
			DurationMS:    elapsed.Milliseconds(),
			Status:        HistoryStatusSuccess,
		})
	}

	result.Success = len(result.Images) > 0
	g.emit(onProgress, StageComplete,
		fmt.Sprintf("Generated %d image(s)!", len(result.Images)), 100,
		map[string]any{"total": len(result.Images)})

	g.logger.Info("generation finished",
		zap.Bool("success", result.Success),
		zap.Int("images", len(result.Images)),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// enhancePrompt asks the text engine to rewrite a prompt. On engine failure
// the original prompt is returned unchanged and an error event is recorded;
// enhancement failure is never fatal to the batch.
func (g *Generator) enhancePrompt(ctx context.Context, prompt, instruction string, onProgress ProgressFunc) string {
	g.emit(onProgress, StageEnhancing, "Enhancing prompt...", -1, nil)

	enhanced, err := g.text.Enhance(ctx, prompt, instruction)
	if err != nil {
		g.logger.Warn("prompt enhancement failed", zap.Error(err))
		g.emit(onProgress, StageError,
			fmt.Sprintf("Enhancement failed: %v", err), -1, nil)
		return prompt
	}

	// The full enhanced result is the message, so consumers can show it.
	g.emit(onProgress, StageEnhanced, enhanced, -1, nil)
	return enhanced
}

// fail records a batch-fatal error and returns the partial result.
func (g *Generator) fail(onProgress ProgressFunc, result GenerationResult, err error) GenerationResult {
	g.logger.Error("generation failed", zap.Error(err))
	result.Errors = append(result.Errors, err.Error())
	result.Success = false
	g.emit(onProgress, StageError, fmt.Sprintf("Generation failed: %v", err), -1, nil)
	return result
}

// emit delivers one progress event. progress < 0 means no percentage.
func (g *Generator) emit(onProgress ProgressFunc, stage Stage, message string, progress int, data map[string]any) {
	g.logger.Debug("progress event",
		zap.String("stage", string(stage)),
		zap.String("message", truncate(message, 120)),
		zap.Int("progress", progress),
	)
	if onProgress == nil {
		return
	}
	ev := ProgressEvent{Stage: stage, Message: message, Data: data}
	if progress >= 0 {
		p := progress
		ev.Progress = &p
	}
	onProgress(ev)
}

// record hands an entry to the history recorder, if one is attached.
func (g *Generator) record(entry HistoryEntry) {
	if g.history != nil {
		g.history.Record(entry)
	}
}

// writeSidecar stores the final prompt in a .txt file next to the image.
// Best-effort: failures are logged, never surfaced as events.
func (g *Generator) writeSidecar(imagePath, prompt string) {
	sidecar := strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".txt"
	if err := os.WriteFile(sidecar, []byte(prompt), 0o644); err != nil {
		g.logger.Warn("failed to write prompt sidecar",
			zap.String("path", sidecar), zap.Error(err))
		return
	}
	g.logger.Debug("wrote prompt sidecar", zap.String("path", sidecar))
}

// pick returns a uniform random index in [0, n).
func (g *Generator) pick(n int) int {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.rng.Intn(n)
}

// randomSeed returns a fresh random 32-bit seed for one image.
func (g *Generator) randomSeed() int64 {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.rng.Int63n(1 << 32)
}

// truncate shortens s to at most n bytes for log and event payloads.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
