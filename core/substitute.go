package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// variablePattern matches __name__ placeholder tokens: double underscore,
// then letters/digits/underscore/hyphen/slash, then double underscore.
// Slashes allow variables stored in library subdirectories
// ("__styles/painting__").
var variablePattern = regexp.MustCompile(`__[a-zA-Z0-9_\-/]+__`)

// substituteVariables resolves every __name__ token in prompt against vars.
// Each occurrence is resolved independently, first to last, so a duplicated
// token may receive different values. Tokens that cannot be resolved are left
// unchanged in the output.
//
// When generateMissing is true, unknown tokens are filled by asking the text
// engine for candidate values, which are persisted to the store and merged
// into vars so later calls within the same batch can reuse them.
func (g *Generator) substituteVariables(
	ctx context.Context,
	prompt string,
	vars map[string]Variable,
	onProgress ProgressFunc,
	generateMissing bool,
) string {
	matches := variablePattern.FindAllString(prompt, -1)
	if len(matches) == 0 {
		return prompt
	}

	g.logger.Debug("substituting variables",
		zap.String("prompt", prompt),
		zap.Strings("tokens", matches),
	)

	substituted := prompt
	for _, token := range matches {
		if v, ok := vars[token]; ok {
			if len(v.Values) == 0 {
				continue
			}
			value := v.Values[g.pick(len(v.Values))]
			substituted = replaceFirst(substituted, token, value)
			g.emit(onProgress, StageSubstituting,
				fmt.Sprintf("Substituted %s -> %s", token, value), -1,
				map[string]any{"token": token, "value": value})
			continue
		}

		if !generateMissing {
			continue
		}

		value, err := g.generateMissingVariable(ctx, token, prompt, vars, onProgress)
		if err != nil {
			g.emit(onProgress, StageError,
				fmt.Sprintf("Failed to generate variable %s: %v", token, err), -1, nil)
			continue
		}
		substituted = replaceFirst(substituted, token, value)
		g.emit(onProgress, StageSubstituting,
			fmt.Sprintf("Substituted %s -> %s", token, value), -1,
			map[string]any{"token": token, "value": value})
	}

	return substituted
}

// generateMissingVariable asks the text engine for candidate values for an
// unknown token, persists them, merges the refreshed store contents into
// vars, and returns one value chosen at random.
func (g *Generator) generateMissingVariable(
	ctx context.Context,
	token, contextPrompt string,
	vars map[string]Variable,
	onProgress ProgressFunc,
) (string, error) {
	rawName := trimTokenDelimiters(token)

	g.emit(onProgress, StageVarMissing,
		fmt.Sprintf("Missing variable: %s", token), -1, nil)
	g.emit(onProgress, StageVarGenerating,
		fmt.Sprintf("Generating values for %s...", token), -1, nil)

	values, err := g.text.GenerateValues(ctx, rawName, contextPrompt, g.valueCount)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", ErrNoValues
	}

	if _, err := g.store.Save(rawName,
		fmt.Sprintf("Auto-generated values for %s", rawName), values); err != nil {
		return "", err
	}
	g.emit(onProgress, StageVarSaved,
		fmt.Sprintf("Generated %d values for %s", len(values), token), -1, nil)

	// Newly saved variables become visible to the rest of the batch.
	if refreshed, err := g.store.LoadAll(); err == nil {
		for id, v := range refreshed {
			vars[id] = v
		}
	}

	return values[g.pick(len(values))], nil
}

// replaceFirst replaces the first remaining occurrence of token in s.
func replaceFirst(s, token, value string) string {
	return strings.Replace(s, token, value, 1)
}

// trimTokenDelimiters strips the leading and trailing underscores from a
// token, preserving interior underscores ("__cat_breed__" -> "cat_breed").
func trimTokenDelimiters(token string) string {
	return strings.Trim(token, "_")
}
