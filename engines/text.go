package engines

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"zexplorer/core"
)

// enhanceSystemPrompt instructs the model to rewrite prompts for image
// generation. Kept close to the wording tuned against Qwen3-class models.
const enhanceSystemPrompt = `You are an expert prompt engineer for image generation models.
Your task is to enhance the user's prompt to create more detailed, vivid, and visually
compelling descriptions that will produce stunning images.

Rules:
- Add specific details about lighting, atmosphere, style, and composition
- Maintain the core intent of the original prompt
- Keep the enhanced prompt concise but descriptive
- Output ONLY the enhanced prompt, nothing else`

// textBackend is the engine behind the adapter: local llama.cpp or an
// OpenAI-compatible endpoint.
type textBackend interface {
	generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	close() error
}

// TextEngine adapts a text-generation backend to the workflow's interface.
// The backend is loaded lazily on first use through the residency manager,
// which evicts the image engine first if it is resident.
type TextEngine struct {
	res    *Residency
	cfg    *core.Config
	logger *zap.Logger

	// backend is non-nil only while SlotText is occupied. Written during
	// load/unload under the residency mutex and read only while a lease is
	// held, so eviction by a concurrent batch cannot null it mid-call.
	backend textBackend
}

// NewTextEngine creates the adapter. Nothing is loaded until the first call.
func NewTextEngine(cfg *core.Config, res *Residency, logger *zap.Logger) *TextEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextEngine{res: res, cfg: cfg, logger: logger}
}

// acquire populates the text slot if needed and leases it for one engine
// call. The caller must invoke the returned release when the call finishes.
func (e *TextEngine) acquire() (func(), error) {
	return e.res.Acquire(SlotText,
		func() error {
			backend, err := newTextBackend(e.cfg, e.logger)
			if err != nil {
				return err
			}
			e.backend = backend
			return nil
		},
		func() error {
			backend := e.backend
			e.backend = nil
			if backend == nil {
				return nil
			}
			return backend.close()
		},
	)
}

// newTextBackend picks the backend from configuration.
func newTextBackend(cfg *core.Config, logger *zap.Logger) (textBackend, error) {
	switch cfg.LLMMode {
	case core.LLMModeOpenAI:
		return newOpenAIBackend(cfg, logger)
	case core.LLMModeLocal:
		return newLocalBackend(cfg, logger)
	default:
		return nil, fmt.Errorf("engines: unknown LLM mode %q", cfg.LLMMode)
	}
}

// Generate produces free text from a prompt.
func (e *TextEngine) Generate(ctx context.Context, prompt string) (string, error) {
	release, err := e.acquire()
	if err != nil {
		return "", err
	}
	defer release()

	text, err := e.backend.generate(ctx, prompt, e.cfg.LLMMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Enhance rewrites a prompt for better generative output.
func (e *TextEngine) Enhance(ctx context.Context, prompt, instruction string) (string, error) {
	var b strings.Builder
	b.WriteString(enhanceSystemPrompt)
	b.WriteString("\n\nOriginal prompt: ")
	b.WriteString(prompt)
	if instruction != "" {
		b.WriteString("\nAdditional instructions: ")
		b.WriteString(instruction)
	}
	b.WriteString("\n\nEnhanced prompt:")

	return e.Generate(ctx, b.String())
}

// GenerateValues produces candidate values for a prompt variable. The
// variable name itself is the instruction: "cat breed" yields breed names,
// "detailed scene with dramatic lighting" yields full descriptions. Parse
// failures soften to line parsing; a totally unparseable response returns an
// empty list and no error.
func (e *TextEngine) GenerateValues(ctx context.Context, name, contextPrompt string, count int) ([]string, error) {
	readable := strings.TrimSpace(strings.ReplaceAll(name, "_", " "))

	prompt := fmt.Sprintf(`Generate exactly %d values for: %q

Context: This will be substituted into the prompt %q

The variable name tells you what to generate:
- "cat breed" -> simple breed names
- "detailed scene with dramatic lighting" -> full detailed scene descriptions
- "50 word fantasy landscape" -> ~50 word landscape descriptions

Interpret %q literally. Generate what it asks for.

Return ONLY a JSON array of %d strings. Nothing else.

JSON array:`, count, readable, contextPrompt, readable, count)

	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	// Value lists can be long; give the model headroom beyond the default.
	response, err := e.backend.generate(ctx, prompt, 4096)
	if err != nil {
		return nil, err
	}

	values := parseValueList(response, count)
	if len(values) == 0 {
		e.logger.Warn("variable value generation produced nothing usable",
			zap.String("variable", name))
	}
	return values, nil
}

// Unload releases the backend's memory. Idempotent.
func (e *TextEngine) Unload() error {
	return e.res.Unload(SlotText)
}

var _ core.TextEngine = (*TextEngine)(nil)
