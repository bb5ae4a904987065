package core

import (
	"context"
	"strings"
	"testing"
)

func TestSubstituteDuplicateTokensResolveIndependently(t *testing.T) {
	store := newMemStore(map[string]Variable{
		"__color__": {ID: "__color__", Values: []string{"red", "blue", "green"}},
	})
	gen := newTestGenerator(t, store, nil, nil)

	out := gen.substituteVariables(context.Background(),
		"a __color__ house next to a __color__ car", store.vars, nil, false)

	if strings.Contains(out, "__color__") {
		t.Errorf("output = %q, tokens left unresolved", out)
	}
}

func TestSubstituteSlashQualifiedToken(t *testing.T) {
	store := newMemStore(map[string]Variable{
		"__styles/painting__": {ID: "__styles/painting__", Values: []string{"impressionist"}},
	})
	gen := newTestGenerator(t, store, nil, nil)

	out := gen.substituteVariables(context.Background(),
		"a portrait, __styles/painting__ style", store.vars, nil, false)

	if out != "a portrait, impressionist style" {
		t.Errorf("output = %q", out)
	}
}

func TestSubstituteUnknownTokenLeftWhenGenerationDisabled(t *testing.T) {
	store := newMemStore(nil)
	gen := newTestGenerator(t, store, nil, nil)

	out := gen.substituteVariables(context.Background(),
		"a __mystery__ scene", store.vars, nil, false)

	if out != "a __mystery__ scene" {
		t.Errorf("output = %q, want token preserved", out)
	}
}

func TestSubstituteEmptyValueListLeavesToken(t *testing.T) {
	store := newMemStore(map[string]Variable{
		"__empty__": {ID: "__empty__", Values: nil},
	})
	gen := newTestGenerator(t, store, nil, nil)

	out := gen.substituteVariables(context.Background(),
		"a __empty__ scene", store.vars, nil, false)

	if out != "a __empty__ scene" {
		t.Errorf("output = %q, want token preserved", out)
	}
}

func TestSubstituteNoTokensIsPassthrough(t *testing.T) {
	store := newMemStore(nil)
	gen := newTestGenerator(t, store, nil, nil)

	in := "plain prompt with single_underscores and _one_"
	if out := gen.substituteVariables(context.Background(), in, store.vars, nil, true); out != in {
		t.Errorf("output = %q, want unchanged", out)
	}
}

func TestVariablePattern(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a __animal__ at dawn", []string{"__animal__"}},
		{"__a__ and __b-c__", []string{"__a__", "__b-c__"}},
		{"__styles/painting__", []string{"__styles/painting__"}},
		{"no tokens here", nil},
		{"_single_ underscores", nil},
	}
	for _, tt := range tests {
		got := variablePattern.FindAllString(tt.input, -1)
		if len(got) != len(tt.want) {
			t.Errorf("FindAllString(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("FindAllString(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTrimTokenDelimiters(t *testing.T) {
	tests := []struct{ in, want string }{
		{"__animal__", "animal"},
		{"__cat_breed__", "cat_breed"},
		{"__styles/painting__", "styles/painting"},
	}
	for _, tt := range tests {
		if got := trimTokenDelimiters(tt.in); got != tt.want {
			t.Errorf("trimTokenDelimiters(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
