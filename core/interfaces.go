package core

import "context"

// TextEngine is the text-generation collaborator. The adapter behind it owns
// at most one loaded model instance; loading is lazy and unloading is
// idempotent. All calls block until the engine responds.
type TextEngine interface {
	// Generate produces free text from a prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// Enhance rewrites a prompt for better generative output. The instruction
	// is an optional free-text directive.
	Enhance(ctx context.Context, prompt, instruction string) (string, error)

	// GenerateValues produces candidate values for a prompt variable. The
	// name is the bare variable name (underscores as spaces work best) and
	// contextPrompt is the prompt the values will be substituted into.
	// Engine load and inference failures are returned as errors; an
	// unparseable response softens to an empty list with no error.
	GenerateValues(ctx context.Context, name, contextPrompt string, count int) ([]string, error)

	// Unload releases the engine's backing memory. Idempotent.
	Unload() error
}

// SynthesisParams carries one image-synthesis call.
type SynthesisParams struct {
	Prompt string
	Width  int
	Height int
	Seed   int64

	// OnStep, when non-nil, is invoked once per denoising step with the
	// current step (1-based) and the total step count. It runs on the
	// synthesis goroutine and must return quickly.
	OnStep func(step, total int)
}

// SynthesisOutput is the result of one image-synthesis call.
type SynthesisOutput struct {
	// Path is where the finished image was written.
	Path string
}

// ImageEngine is the image-synthesis collaborator. Like TextEngine, the
// adapter behind it owns at most one loaded model instance.
type ImageEngine interface {
	Synthesize(ctx context.Context, params SynthesisParams) (SynthesisOutput, error)

	// Unload releases the engine's backing memory. Idempotent.
	Unload() error
}

// VariableStore persists named value lists keyed by __name__ tokens.
type VariableStore interface {
	// LoadAll returns every known variable keyed by token id ("__name__").
	LoadAll() (map[string]Variable, error)

	// Save persists a value list under the bare variable name (no
	// underscores) and returns the storage location.
	Save(name, description string, values []string) (string, error)
}

// Variable is a named, persisted list of candidate substitution values.
// Value lists are never mutated in place; regeneration rewrites the list
// under the same identifier.
type Variable struct {
	// ID is the token form, e.g. "__animal__".
	ID string

	// Description is the optional human-readable description.
	Description string

	// Values are the candidate substitution strings, in file order.
	Values []string

	// FilePath is where the variable is stored.
	FilePath string
}

// HistoryRecorder receives one entry per image attempt. Implementations must
// not block; the db package provides an async writer.
type HistoryRecorder interface {
	Record(entry HistoryEntry)
}
