// Package core contains the generation pipeline: shared types, the
// variable-substitution engine, and the two-phase generation workflow used by
// both the console and the web server.
//
// This file contains the shared data types (atoms) exchanged between the
// workflow, the progress relay, and the consumers.
package core

import "fmt"

// Stage identifies a point in the generation workflow. The set of stages is
// closed; consumers switch on these values to drive rendering.
type Stage string

// Workflow stages in the order they are normally reached. The error stage is
// reachable from any state and is not necessarily terminal: a per-image error
// is recorded and the batch continues with the next image.
const (
	StageStarting          Stage = "starting"
	StageLoadingVars       Stage = "loading_vars"
	StageSubstituting      Stage = "substituting"
	StageVarMissing        Stage = "var_missing"
	StageVarGenerating     Stage = "var_generating"
	StageVarSaved          Stage = "var_saved"
	StageEnhancing         Stage = "enhancing"
	StageEnhanced          Stage = "enhanced"
	StagePhase1Complete    Stage = "phase1_complete"
	StageFinalPrompt       Stage = "final_prompt"
	StageLLMUnloaded       Stage = "llm_unloaded"
	StageLoadingImageModel Stage = "loading_image_model"
	StageGeneratingImage   Stage = "generating_image"
	StageDiffusionStep     Stage = "diffusion_step"
	StageImageSaved        Stage = "image_saved"
	StageComplete          Stage = "complete"
	StageError             Stage = "error"
)

// Request bounds. Width/height limits are pass-through constraints of the
// image synthesis engine; count bounds the batch size.
const (
	MinCount = 1
	MaxCount = 100

	MinDimension = 256
	MaxDimension = 2048

	DefaultWidth  = 1024
	DefaultHeight = 1024

	// DefaultVariableValueCount is how many candidate values are requested
	// from the text engine when a prompt variable is missing.
	DefaultVariableValueCount = 20
)

// GenerationRequest describes one batch of images to generate. It is
// immutable once handed to the workflow.
//
// Prompt may embed __name__ variable tokens and an optional " > " enhancement
// separator ("a cat > make it magical"). When Seed is non-nil it is reused
// identically for every image in the batch; this is intentional so a fixed
// seed stays reproducible across variable substitutions.
type GenerationRequest struct {
	Prompt                 string `json:"prompt"`
	Count                  int    `json:"count"`
	Width                  int    `json:"width"`
	Height                 int    `json:"height"`
	Seed                   *int64 `json:"seed,omitempty"`
	Enhance                bool   `json:"enhance"`
	EnhancementInstruction string `json:"enhancement_instruction,omitempty"`
}

// DefaultRequest returns a request with the default batch size and
// dimensions. The caller must set Prompt.
func DefaultRequest() GenerationRequest {
	return GenerationRequest{
		Count:  1,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

// Validate checks the request bounds. It returns ErrInvalidRequest wrapped
// with the offending field.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("%w: prompt must not be empty", ErrInvalidRequest)
	}
	if r.Count < MinCount || r.Count > MaxCount {
		return fmt.Errorf("%w: count %d must be between %d and %d",
			ErrInvalidRequest, r.Count, MinCount, MaxCount)
	}
	if r.Width < MinDimension || r.Width > MaxDimension {
		return fmt.Errorf("%w: width %d must be between %d and %d",
			ErrInvalidRequest, r.Width, MinDimension, MaxDimension)
	}
	if r.Height < MinDimension || r.Height > MaxDimension {
		return fmt.Errorf("%w: height %d must be between %d and %d",
			ErrInvalidRequest, r.Height, MinDimension, MaxDimension)
	}
	if r.Seed != nil && *r.Seed < 0 {
		return fmt.Errorf("%w: seed must be non-negative, got %d",
			ErrInvalidRequest, *r.Seed)
	}
	return nil
}

// ProgressEvent is a one-way progress update emitted by the workflow at each
// state transition. Events are created by the workflow, consumed exactly once
// by a relay, and never mutated after creation.
//
// Progress is a percentage (0-100) when present. Within one run it is
// monotonically non-decreasing as a rule of thumb, not an invariant:
// multi-image batches interleave per-image sub-ranges.
type ProgressEvent struct {
	Stage    Stage          `json:"stage"`
	Message  string         `json:"message"`
	Progress *int           `json:"progress,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ProgressFunc receives progress events from the workflow. Implementations
// must not block; the stream relay enqueues without waiting.
type ProgressFunc func(ProgressEvent)

// GenerationResult aggregates the outcome of one batch.
//
// FinalPrompts and SeedsUsed are index-aligned per requested image and have
// length Count whenever no batch-fatal error occurred: a failed image still
// consumes a prepared prompt and a seed, it just does not append to Images.
// Success is true exactly when at least one image was produced, so a
// partial-failure batch can be successful with a non-empty Errors list.
type GenerationResult struct {
	Success      bool     `json:"success"`
	Images       []string `json:"images"`
	FinalPrompts []string `json:"final_prompts"`
	SeedsUsed    []int64  `json:"seeds_used"`
	Errors       []string `json:"errors"`
}

// HistoryEntry is the record handed to an optional history recorder after
// each image attempt. Recording is best-effort and must never block or fail
// the workflow.
type HistoryEntry struct {
	CorrelationID string
	Prompt        string
	Seed          int64
	Width         int
	Height        int
	ImagePath     string
	DurationMS    int64
	Status        string
	ErrorMessage  string
}

// History entry status values.
const (
	HistoryStatusSuccess = "success"
	HistoryStatusError   = "error"
)
