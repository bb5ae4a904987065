// Package console implements the interactive terminal frontend: a REPL with
// slash commands, a colored progress renderer, and an ANSI image preview.
package console

import (
	"strconv"
	"strings"
	"unicode"

	"zexplorer/core"
)

// BatchParams are the per-prompt batch settings parsed from the input suffix.
type BatchParams struct {
	Count  int
	Width  int
	Height int
}

// DefaultBatchParams returns one image at the default dimensions.
func DefaultBatchParams() BatchParams {
	return BatchParams{
		Count:  1,
		Width:  core.DefaultWidth,
		Height: core.DefaultHeight,
	}
}

// ParseBatchParams splits a REPL input into the prompt and its batch
// parameters. Syntax: "prompt text : x10,h832,w1216" where x is count, h is
// height, w is width, all optional. The split is on the LAST colon so prompts
// containing colons still work, and the suffix is only treated as parameters
// when it actually looks like them; otherwise the input is returned intact.
func ParseBatchParams(input string) (string, BatchParams) {
	return ParseBatchParamsFrom(input, DefaultBatchParams())
}

// ParseBatchParamsFrom parses with explicit base values, so REPL session
// settings (/size) survive prompts that do not override them.
func ParseBatchParamsFrom(input string, base BatchParams) (string, BatchParams) {
	params := base

	idx := strings.LastIndex(input, ":")
	if idx < 0 {
		return input, params
	}

	promptPart := strings.TrimSpace(input[:idx])
	paramPart := strings.TrimSpace(input[idx+1:])

	if !looksLikeParams(paramPart) {
		return input, params
	}

	for _, raw := range strings.Split(paramPart, ",") {
		p := strings.ToLower(strings.TrimSpace(raw))
		if len(p) < 2 {
			continue
		}
		n, err := strconv.Atoi(p[1:])
		if err != nil {
			continue
		}
		switch p[0] {
		case 'x':
			params.Count = n
		case 'h':
			params.Height = n
		case 'w':
			params.Width = n
		}
	}

	return promptPart, params
}

// looksLikeParams reports whether at least one comma-separated token is an
// x/h/w letter followed by digits.
func looksLikeParams(s string) bool {
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if len(tok) < 2 {
			continue
		}
		if tok[0] != 'x' && tok[0] != 'h' && tok[0] != 'w' {
			continue
		}
		if strings.ContainsFunc(tok[1:], unicode.IsDigit) {
			return true
		}
	}
	return false
}
