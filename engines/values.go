package engines

import (
	"encoding/json"
	"strings"
)

// parseValueList extracts a list of variable values from an LLM response.
// The response should be a JSON array of strings, but models wrap output in
// prose or code fences often enough that two fallbacks are needed: first the
// widest [...] slice is tried as JSON, then plain line parsing. The result
// is capped at requested+10 so a runaway response cannot flood the store.
func parseValueList(response string, requested int) []string {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil
	}

	limit := requested + 10

	if values := parseJSONArray(response); len(values) > 0 {
		return capValues(values, limit)
	}
	return capValues(parseLines(response), limit)
}

// parseJSONArray tries the substring between the first '[' and the last ']'
// as a JSON array of strings.
func parseJSONArray(s string) []string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil
	}

	var raw []string
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return nil
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// parseLines treats each non-empty line as one value, stripping list
// punctuation the model may have added.
func parseLines(s string) []string {
	var values []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSuffix(line, ",")
		line = strings.Trim(line, `"'`)
		line = strings.TrimSpace(line)
		if line == "" || line == "[" || line == "]" || strings.HasPrefix(line, "```") {
			continue
		}
		values = append(values, line)
	}
	return values
}

func capValues(values []string, limit int) []string {
	if len(values) > limit {
		return values[:limit]
	}
	return values
}
