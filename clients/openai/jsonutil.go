package openai

import (
	"regexp"
	"strings"
)

var (
	// jsonBlockPattern matches JSON inside a fenced markdown block.
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\[{].*[\\]}])\\s*```")
	trailingComma    = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON returns the JSON payload of a model reply: the content of a
// fenced ```json block if there is one, otherwise the trimmed reply.
// Trailing commas are removed.
func ExtractJSON(content string) string {
	raw := strings.TrimSpace(content)
	if m := jsonBlockPattern.FindStringSubmatch(content); len(m) > 1 {
		raw = m[1]
	}
	return trailingComma.ReplaceAllString(raw, "$1")
}
