package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// memStore is an in-memory VariableStore. Saved variables become visible to
// subsequent LoadAll calls, like the file-backed store.
type memStore struct {
	mu      sync.Mutex
	vars    map[string]Variable
	loadErr error
	saveErr error
	saves   []string
}

func newMemStore(vars map[string]Variable) *memStore {
	if vars == nil {
		vars = make(map[string]Variable)
	}
	return &memStore{vars: vars}
}

func (s *memStore) LoadAll() (map[string]Variable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]Variable, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(name, description string, values []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.saves = append(s.saves, name)
	id := "__" + name + "__"
	s.vars[id] = Variable{ID: id, Description: description, Values: values}
	return name + ".md", nil
}

type fakeText struct {
	enhanceFn   func(prompt, instruction string) (string, error)
	valuesFn    func(name string, count int) ([]string, error)
	unloadCalls int

	lastEnhancePrompt      string
	lastEnhanceInstruction string
}

func (t *fakeText) Generate(ctx context.Context, prompt string) (string, error) {
	return "generated", nil
}

func (t *fakeText) Enhance(ctx context.Context, prompt, instruction string) (string, error) {
	t.lastEnhancePrompt = prompt
	t.lastEnhanceInstruction = instruction
	if t.enhanceFn != nil {
		return t.enhanceFn(prompt, instruction)
	}
	return "enhanced: " + prompt, nil
}

func (t *fakeText) GenerateValues(ctx context.Context, name, contextPrompt string, count int) ([]string, error) {
	if t.valuesFn != nil {
		return t.valuesFn(name, count)
	}
	return []string{"alpha", "beta"}, nil
}

func (t *fakeText) Unload() error {
	t.unloadCalls++
	return nil
}

type fakeImage struct {
	synthesizeFn func(call int, params SynthesisParams) (SynthesisOutput, error)
	calls        []SynthesisParams
	outDir       string
}

func (e *fakeImage) Synthesize(ctx context.Context, params SynthesisParams) (SynthesisOutput, error) {
	call := len(e.calls)
	e.calls = append(e.calls, params)
	if e.synthesizeFn != nil {
		return e.synthesizeFn(call, params)
	}
	path := filepath.Join(e.outDir, fmt.Sprintf("img_%d.png", call))
	return SynthesisOutput{Path: path}, nil
}

func (e *fakeImage) Unload() error { return nil }

type memHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

func (h *memHistory) Record(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
}

// eventLog collects progress events in emission order.
type eventLog struct {
	events []ProgressEvent
}

func (l *eventLog) capture(ev ProgressEvent) {
	l.events = append(l.events, ev)
}

func (l *eventLog) stages() []Stage {
	out := make([]Stage, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Stage
	}
	return out
}

func (l *eventLog) has(stage Stage) bool {
	for _, ev := range l.events {
		if ev.Stage == stage {
			return true
		}
	}
	return false
}

// indexOf returns the position of the first event with the given stage, or -1.
func (l *eventLog) indexOf(stage Stage) int {
	for i, ev := range l.events {
		if ev.Stage == stage {
			return i
		}
	}
	return -1
}

func newTestGenerator(t *testing.T, store VariableStore, text *fakeText, image *fakeImage, opts ...GeneratorOption) *Generator {
	t.Helper()
	if text == nil {
		text = &fakeText{}
	}
	if image == nil {
		image = &fakeImage{outDir: t.TempDir()}
	}
	opts = append(opts, WithRandSource(rand.NewSource(1)))
	return NewGenerator(store, text, image, zap.NewNop(), opts...)
}

func TestGenerateSingleImageHappyPath(t *testing.T) {
	image := &fakeImage{outDir: t.TempDir()}
	gen := newTestGenerator(t, newMemStore(nil), nil, image)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a red fox",
		Count:  1,
		Width:  512,
		Height: 768,
	}, log.capture)

	if !result.Success {
		t.Fatalf("result not successful: %+v", result)
	}
	if len(result.Images) != 1 || len(result.FinalPrompts) != 1 || len(result.SeedsUsed) != 1 {
		t.Errorf("result lengths: images=%d prompts=%d seeds=%d",
			len(result.Images), len(result.FinalPrompts), len(result.SeedsUsed))
	}
	if result.FinalPrompts[0] != "a red fox" {
		t.Errorf("final prompt = %q", result.FinalPrompts[0])
	}
	if len(image.calls) != 1 || image.calls[0].Width != 512 || image.calls[0].Height != 768 {
		t.Errorf("synthesis params: %+v", image.calls)
	}

	for _, want := range []Stage{
		StageStarting, StageLoadingVars, StagePhase1Complete,
		StageLoadingImageModel, StageFinalPrompt, StageGeneratingImage,
		StageImageSaved, StageComplete,
	} {
		if !log.has(want) {
			t.Errorf("missing stage %q in %v", want, log.stages())
		}
	}
	if log.indexOf(StagePhase1Complete) > log.indexOf(StageLoadingImageModel) {
		t.Error("phase 1 reported after phase 2 started")
	}

	last := log.events[len(log.events)-1]
	if last.Stage != StageComplete || last.Progress == nil || *last.Progress != 100 {
		t.Errorf("terminal event = %+v", last)
	}
}

func TestGenerateSubstitutesVariables(t *testing.T) {
	store := newMemStore(map[string]Variable{
		"__animal__": {ID: "__animal__", Values: []string{"fox"}},
	})
	gen := newTestGenerator(t, store, nil, nil)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a __animal__ at dawn",
		Count:  1, Width: 1024, Height: 1024,
	}, log.capture)

	if result.FinalPrompts[0] != "a fox at dawn" {
		t.Errorf("final prompt = %q", result.FinalPrompts[0])
	}
	if !log.has(StageSubstituting) {
		t.Error("no substituting event emitted")
	}
}

func TestGenerateMissingVariableGeneratesAndSaves(t *testing.T) {
	store := newMemStore(nil)
	text := &fakeText{valuesFn: func(name string, count int) ([]string, error) {
		if name != "animal" {
			t.Errorf("value generation for %q, want animal", name)
		}
		return []string{"owl", "lynx"}, nil
	}}
	gen := newTestGenerator(t, store, text, nil)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a __animal__",
		Count:  1, Width: 1024, Height: 1024,
	}, log.capture)

	if len(store.saves) != 1 || store.saves[0] != "animal" {
		t.Errorf("saves = %v", store.saves)
	}
	final := result.FinalPrompts[0]
	if final != "a owl" && final != "a lynx" {
		t.Errorf("final prompt = %q, token not substituted", final)
	}
	for _, want := range []Stage{StageVarMissing, StageVarGenerating, StageVarSaved} {
		if !log.has(want) {
			t.Errorf("missing stage %q", want)
		}
	}
	if log.indexOf(StageVarMissing) > log.indexOf(StageVarSaved) {
		t.Error("var_saved before var_missing")
	}
}

func TestGenerateEmptyValueListLeavesToken(t *testing.T) {
	text := &fakeText{valuesFn: func(string, int) ([]string, error) {
		return nil, nil
	}}
	gen := newTestGenerator(t, newMemStore(nil), text, nil)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a __thing__",
		Count:  1, Width: 1024, Height: 1024,
	}, log.capture)

	if result.FinalPrompts[0] != "a __thing__" {
		t.Errorf("final prompt = %q, want token preserved", result.FinalPrompts[0])
	}
	if !log.has(StageError) {
		t.Error("no error event for failed variable generation")
	}
	// The batch itself still completes.
	if !result.Success {
		t.Error("batch should still succeed with the raw token")
	}
}

func TestGenerateInlineEnhancementSeparator(t *testing.T) {
	text := &fakeText{}
	gen := newTestGenerator(t, newMemStore(nil), text, nil)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat > make it magical",
		Count:  1, Width: 1024, Height: 1024,
	}, log.capture)

	if text.lastEnhanceInstruction != "make it magical" {
		t.Errorf("instruction = %q", text.lastEnhanceInstruction)
	}
	if !strings.Contains(text.lastEnhancePrompt, "a cat") {
		t.Errorf("enhance prompt = %q, missing base prompt", text.lastEnhancePrompt)
	}
	if !strings.HasPrefix(result.FinalPrompts[0], "enhanced: ") {
		t.Errorf("final prompt = %q, enhancement not applied", result.FinalPrompts[0])
	}
	for _, want := range []Stage{StageEnhancing, StageEnhanced, StageLLMUnloaded} {
		if !log.has(want) {
			t.Errorf("missing stage %q", want)
		}
	}
	if text.unloadCalls != 1 {
		t.Errorf("unload calls = %d, want 1", text.unloadCalls)
	}
	if log.indexOf(StageEnhanced) > log.indexOf(StageGeneratingImage) {
		t.Error("enhancement reported after image generation started")
	}
}

func TestGenerateExplicitEnhanceFlag(t *testing.T) {
	text := &fakeText{}
	gen := newTestGenerator(t, newMemStore(nil), text, nil)

	gen.Generate(context.Background(), GenerationRequest{
		Prompt:                 "a cat",
		Enhance:                true,
		EnhancementInstruction: "more drama",
		Count:                  1, Width: 1024, Height: 1024,
	}, nil)

	if text.lastEnhanceInstruction != "more drama" {
		t.Errorf("instruction = %q", text.lastEnhanceInstruction)
	}
}

func TestGenerateEnhancementFailureKeepsOriginalPrompt(t *testing.T) {
	text := &fakeText{enhanceFn: func(string, string) (string, error) {
		return "", errors.New("llm down")
	}}
	gen := newTestGenerator(t, newMemStore(nil), text, nil)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt:  "a cat",
		Enhance: true,
		Count:   1, Width: 1024, Height: 1024,
	}, log.capture)

	if !strings.Contains(result.FinalPrompts[0], "a cat") {
		t.Errorf("final prompt = %q, original lost", result.FinalPrompts[0])
	}
	if !log.has(StageError) {
		t.Error("no error event for failed enhancement")
	}
	if !result.Success {
		t.Error("enhancement failure must not fail the batch")
	}
}

func TestGenerateNoUnloadForPlainSingleImage(t *testing.T) {
	text := &fakeText{}
	gen := newTestGenerator(t, newMemStore(nil), text, nil)

	var log eventLog
	gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  1, Width: 1024, Height: 1024,
	}, log.capture)

	if text.unloadCalls != 0 {
		t.Errorf("unload calls = %d, want 0", text.unloadCalls)
	}
	if log.has(StageLLMUnloaded) {
		t.Error("llm_unloaded emitted for a trivial batch")
	}
}

func TestGenerateFixedSeedReusedAcrossBatch(t *testing.T) {
	image := &fakeImage{outDir: t.TempDir()}
	gen := newTestGenerator(t, newMemStore(nil), nil, image)

	seed := int64(42)
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  3, Width: 1024, Height: 1024,
		Seed: &seed,
	}, nil)

	if len(result.SeedsUsed) != 3 {
		t.Fatalf("seeds used = %v", result.SeedsUsed)
	}
	for i, s := range result.SeedsUsed {
		if s != 42 {
			t.Errorf("seed[%d] = %d, want 42", i, s)
		}
	}
	for i, call := range image.calls {
		if call.Seed != 42 {
			t.Errorf("synthesis call %d seed = %d, want 42", i, call.Seed)
		}
	}
}

func TestGenerateRandomSeedsDifferPerImage(t *testing.T) {
	gen := newTestGenerator(t, newMemStore(nil), nil, nil)

	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  3, Width: 1024, Height: 1024,
	}, nil)

	seen := make(map[int64]bool)
	for _, s := range result.SeedsUsed {
		if s < 0 {
			t.Errorf("negative seed %d", s)
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		t.Errorf("seeds not varied: %v", result.SeedsUsed)
	}
}

func TestGeneratePartialFailureContinuesBatch(t *testing.T) {
	dir := t.TempDir()
	image := &fakeImage{
		outDir: dir,
		synthesizeFn: func(call int, params SynthesisParams) (SynthesisOutput, error) {
			if call == 1 {
				return SynthesisOutput{}, errors.New("out of memory")
			}
			return SynthesisOutput{Path: filepath.Join(dir, fmt.Sprintf("img_%d.png", call))}, nil
		},
	}
	gen := newTestGenerator(t, newMemStore(nil), nil, image)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  3, Width: 1024, Height: 1024,
	}, log.capture)

	if !result.Success {
		t.Error("partial batch should be successful")
	}
	if len(result.Images) != 2 {
		t.Errorf("images = %v, want 2", result.Images)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "out of memory") {
		t.Errorf("errors = %v", result.Errors)
	}
	if len(result.FinalPrompts) != 3 || len(result.SeedsUsed) != 3 {
		t.Errorf("prompts=%d seeds=%d, want 3 each",
			len(result.FinalPrompts), len(result.SeedsUsed))
	}
	if !log.has(StageError) {
		t.Error("no error event for the failed image")
	}
	if len(image.calls) != 3 {
		t.Errorf("synthesis calls = %d, want 3", len(image.calls))
	}
}

func TestGenerateInvalidRequestFails(t *testing.T) {
	image := &fakeImage{outDir: t.TempDir()}
	gen := newTestGenerator(t, newMemStore(nil), nil, image)

	var log eventLog
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "",
		Count:  1, Width: 1024, Height: 1024,
	}, log.capture)

	if result.Success {
		t.Error("empty prompt must fail")
	}
	if len(result.Errors) == 0 {
		t.Error("no error recorded")
	}
	if len(image.calls) != 0 {
		t.Error("synthesis ran for an invalid request")
	}
	if last := log.events[len(log.events)-1]; last.Stage != StageError {
		t.Errorf("terminal stage = %q, want error", last.Stage)
	}
}

func TestGenerateStoreFailureIsFatal(t *testing.T) {
	store := newMemStore(nil)
	store.loadErr = errors.New("disk gone")
	gen := newTestGenerator(t, store, nil, nil)

	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  1, Width: 1024, Height: 1024,
	}, nil)

	if result.Success {
		t.Error("store failure must fail the batch")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "variable store unavailable") {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestGenerateRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	image := &fakeImage{
		outDir: dir,
		synthesizeFn: func(call int, params SynthesisParams) (SynthesisOutput, error) {
			if call == 0 {
				return SynthesisOutput{Path: filepath.Join(dir, "ok.png")}, nil
			}
			return SynthesisOutput{}, errors.New("boom")
		},
	}
	history := &memHistory{}
	gen := newTestGenerator(t, newMemStore(nil), nil, image, WithHistory(history))

	gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  2, Width: 640, Height: 480,
	}, nil)

	if len(history.entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history.entries))
	}
	first, second := history.entries[0], history.entries[1]
	if first.Status != HistoryStatusSuccess || first.ImagePath == "" {
		t.Errorf("first entry = %+v", first)
	}
	if second.Status != HistoryStatusError || second.ErrorMessage == "" {
		t.Errorf("second entry = %+v", second)
	}
	if first.CorrelationID == "" || first.CorrelationID != second.CorrelationID {
		t.Errorf("correlation ids: %q vs %q", first.CorrelationID, second.CorrelationID)
	}
	if first.Width != 640 || first.Height != 480 {
		t.Errorf("dimensions not recorded: %+v", first)
	}
}

func TestGenerateWritesPromptSidecar(t *testing.T) {
	dir := t.TempDir()
	image := &fakeImage{outDir: dir}
	gen := newTestGenerator(t, newMemStore(nil), nil, image)

	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a red fox",
		Count:  1, Width: 1024, Height: 1024,
	}, nil)

	sidecar := strings.TrimSuffix(result.Images[0], ".png") + ".txt"
	data, err := os.ReadFile(sidecar)
	if err != nil {
		t.Fatalf("sidecar not written: %v", err)
	}
	if string(data) != "a red fox" {
		t.Errorf("sidecar content = %q", data)
	}
}

func TestGenerateNilProgressCallback(t *testing.T) {
	gen := newTestGenerator(t, newMemStore(nil), nil, nil)

	// Must not panic.
	result := gen.Generate(context.Background(), GenerationRequest{
		Prompt: "a cat",
		Count:  1, Width: 1024, Height: 1024,
	}, nil)
	if !result.Success {
		t.Errorf("result = %+v", result)
	}
}
