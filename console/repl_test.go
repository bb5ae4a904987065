package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"zexplorer/core"
)

type fakeStore struct {
	vars map[string]core.Variable
}

func (f *fakeStore) LoadAll() (map[string]core.Variable, error) { return f.vars, nil }
func (f *fakeStore) Save(name, description string, values []string) (string, error) {
	return "", nil
}

func runREPL(t *testing.T, deps Deps, input string) string {
	t.Helper()
	if deps.Generate == nil {
		deps.Generate = func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult {
			return core.GenerationResult{Success: true}
		}
	}

	var out bytes.Buffer
	r, err := NewREPL(deps, zap.NewNop(),
		WithIO(strings.NewReader(input), &out),
		WithPreview(false),
		WithVersion("test"),
	)
	if err != nil {
		t.Fatalf("NewREPL: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestREPLQuits(t *testing.T) {
	out := runREPL(t, Deps{}, "/quit\n")
	if !strings.Contains(out, "Goodbye!") {
		t.Error("missing goodbye message")
	}
}

func TestREPLRunsGeneration(t *testing.T) {
	var got core.GenerationRequest
	deps := Deps{
		Generate: func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult {
			got = req
			onProgress(core.ProgressEvent{Stage: core.StageStarting, Message: "Initializing"})
			return core.GenerationResult{
				Success:   true,
				Images:    []string{"/out/a.png"},
				SeedsUsed: []int64{9},
			}
		},
	}

	out := runREPL(t, deps, "a red fox : x2,w512,h768\n/quit\n")

	if got.Prompt != "a red fox" {
		t.Errorf("prompt = %q", got.Prompt)
	}
	if got.Count != 2 || got.Width != 512 || got.Height != 768 {
		t.Errorf("request = %+v", got)
	}
	if !strings.Contains(out, "Generated 1 image(s)") {
		t.Error("missing summary line")
	}
	if !strings.Contains(out, "/out/a.png") {
		t.Error("missing image path in summary")
	}
}

func TestREPLSeedCommandAppliesToRequests(t *testing.T) {
	var got core.GenerationRequest
	deps := Deps{
		Generate: func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult {
			got = req
			return core.GenerationResult{Success: true, Images: []string{"x"}}
		},
	}

	runREPL(t, deps, "/seed 42\na fox\n/quit\n")

	if got.Seed == nil || *got.Seed != 42 {
		t.Errorf("seed = %v, want 42", got.Seed)
	}
}

func TestREPLSizeCommandPersists(t *testing.T) {
	var got core.GenerationRequest
	deps := Deps{
		Generate: func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult {
			got = req
			return core.GenerationResult{Success: true, Images: []string{"x"}}
		},
	}

	runREPL(t, deps, "/size 512x768\na fox\n/quit\n")

	if got.Width != 512 || got.Height != 768 {
		t.Errorf("size = %dx%d, want 512x768", got.Width, got.Height)
	}
}

func TestREPLVarsCommand(t *testing.T) {
	deps := Deps{
		Variables: &fakeStore{vars: map[string]core.Variable{
			"__animal__": {ID: "__animal__", Values: []string{"cat", "dog"}},
		}},
	}

	out := runREPL(t, deps, "/vars\n/quit\n")
	if !strings.Contains(out, "__animal__") {
		t.Error("variable listing missing __animal__")
	}
	if !strings.Contains(out, "cat, dog") {
		t.Error("variable listing missing sample values")
	}
}

func TestREPLRejectsInvalidInput(t *testing.T) {
	called := false
	deps := Deps{
		Generate: func(ctx context.Context, req core.GenerationRequest, onProgress core.ProgressFunc) core.GenerationResult {
			called = true
			return core.GenerationResult{}
		},
	}

	// Count above the maximum is rejected before the workflow starts.
	out := runREPL(t, deps, "a fox : x999\n/quit\n")
	if called {
		t.Error("generation ran for an invalid request")
	}
	if !strings.Contains(out, "Invalid request") {
		t.Error("missing validation message")
	}
}

func TestREPLUnknownCommand(t *testing.T) {
	out := runREPL(t, Deps{}, "/frobnicate\n/quit\n")
	if !strings.Contains(out, "Unknown command") {
		t.Error("missing unknown-command message")
	}
}
