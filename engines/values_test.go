package engines

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestParseValueListJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "clean array",
			response: `["tabby", "siamese", "maine coon"]`,
			want:     []string{"tabby", "siamese", "maine coon"},
		},
		{
			name:     "array wrapped in prose",
			response: "Here are the values:\n[\"red\", \"blue\"]\nHope that helps!",
			want:     []string{"red", "blue"},
		},
		{
			name:     "array in code fence",
			response: "```json\n[\"one\", \"two\"]\n```",
			want:     []string{"one", "two"},
		},
		{
			name:     "blank entries dropped",
			response: `["a", "", "  ", "b"]`,
			want:     []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseValueList(tt.response, 20)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseValueList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseValueListLineFallback(t *testing.T) {
	response := strings.Join([]string{
		"\"golden retriever\",",
		"'border collie'",
		"poodle",
		"",
		"```",
	}, "\n")

	got := parseValueList(response, 20)
	want := []string{"golden retriever", "border collie", "poodle"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseValueList() = %v, want %v", got, want)
	}
}

func TestParseValueListCapsRunaway(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 100; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%q", fmt.Sprintf("value %d", i))
	}
	sb.WriteString("]")

	got := parseValueList(sb.String(), 20)
	if len(got) != 30 {
		t.Errorf("len = %d, want 30 (requested+10)", len(got))
	}
}

func TestParseValueListEmpty(t *testing.T) {
	for _, response := range []string{"", "   ", "\n\n"} {
		if got := parseValueList(response, 20); len(got) != 0 {
			t.Errorf("parseValueList(%q) = %v, want empty", response, got)
		}
	}
}

func TestParseValueListMalformedJSONFallsBack(t *testing.T) {
	// Unbalanced quotes make the JSON parse fail; lines still salvage it.
	response := "[\"broken\nsecond value"
	got := parseValueList(response, 20)
	if len(got) == 0 {
		t.Fatal("expected line fallback to produce values")
	}
}
