package sdruntime

import "fmt"

// Parameter validation constants. Dimension bounds are the synthesis
// engine's own limits; callers pass requested sizes through unchanged.
const (
	MinImageSize      = 256
	MaxImageSize      = 2048
	ImageSizeMultiple = 8 // dimensions must be divisible by this

	MinSteps = 1
	MaxSteps = 100

	MinCFGScale = 1.0
	MaxCFGScale = 30.0

	MaxPromptLength = 4000
)

// StepFunc reports denoising progress. step is 1-based; total is the
// configured step count. It is invoked on the generation goroutine and must
// return quickly.
type StepFunc func(step, total int)

// GenerateParams holds parameters for one image generation.
type GenerateParams struct {
	Prompt         string  // required: text description of the image
	NegativePrompt string  // optional: what to avoid
	Width          int     // pixels, MinImageSize-MaxImageSize, divisible by 8
	Height         int     // pixels, MinImageSize-MaxImageSize, divisible by 8
	Steps          int     // denoising steps (1-100)
	CFGScale       float64 // classifier-free guidance scale (1.0-30.0)
	Seed           int64   // random seed (-1 for random)

	// OnStep, when non-nil, receives one callback per denoising step.
	OnStep StepFunc
}

// DefaultParams returns sensible defaults. The caller must set Prompt.
func DefaultParams() GenerateParams {
	return GenerateParams{
		Width:    1024,
		Height:   1024,
		Steps:    20,
		CFGScale: 7.0,
		Seed:     -1,
	}
}

// GenerateResult is the outcome of one generation.
type GenerateResult struct {
	// ImageData is the PNG-encoded image.
	ImageData []byte
	// Seed is the seed actually used (resolved when the caller passed -1).
	Seed int64
	// Width and Height echo the generated dimensions.
	Width  int
	Height int
}

// ValidateParams validates generation parameters. Pure function.
func ValidateParams(p GenerateParams) error {
	if p.Prompt == "" {
		return fmt.Errorf("%w: prompt must not be empty", ErrInvalidPrompt)
	}
	if len(p.Prompt) > MaxPromptLength {
		return fmt.Errorf("%w: prompt length %d exceeds maximum %d",
			ErrInvalidPrompt, len(p.Prompt), MaxPromptLength)
	}
	if p.Width < MinImageSize || p.Width > MaxImageSize {
		return fmt.Errorf("%w: width %d must be between %d and %d",
			ErrInvalidParams, p.Width, MinImageSize, MaxImageSize)
	}
	if p.Width%ImageSizeMultiple != 0 {
		return fmt.Errorf("%w: width %d must be divisible by %d",
			ErrInvalidParams, p.Width, ImageSizeMultiple)
	}
	if p.Height < MinImageSize || p.Height > MaxImageSize {
		return fmt.Errorf("%w: height %d must be between %d and %d",
			ErrInvalidParams, p.Height, MinImageSize, MaxImageSize)
	}
	if p.Height%ImageSizeMultiple != 0 {
		return fmt.Errorf("%w: height %d must be divisible by %d",
			ErrInvalidParams, p.Height, ImageSizeMultiple)
	}
	if p.Steps < MinSteps || p.Steps > MaxSteps {
		return fmt.Errorf("%w: steps %d must be between %d and %d",
			ErrInvalidParams, p.Steps, MinSteps, MaxSteps)
	}
	if p.CFGScale < MinCFGScale || p.CFGScale > MaxCFGScale {
		return fmt.Errorf("%w: CFGScale %.2f must be between %.1f and %.1f",
			ErrInvalidParams, p.CFGScale, MinCFGScale, MaxCFGScale)
	}
	if len(p.NegativePrompt) > MaxPromptLength {
		return fmt.Errorf("%w: negative prompt length %d exceeds maximum %d",
			ErrInvalidParams, len(p.NegativePrompt), MaxPromptLength)
	}
	return nil
}
