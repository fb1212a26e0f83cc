package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
	"hackathonhub.shikanime.studio/internal/encoding"
)

// ExtractJSON returns the JSON document embedded in a model response. The
// first fenced block labelled json wins, then the first fenced block of any
// kind, then the whole response trimmed.
func ExtractJSON(response string) string {
	blocks := encoding.FencedCodeBlocks([]byte(response))
	for _, b := range blocks {
		if b.Language == "json" {
			return strings.TrimSpace(b.Content)
		}
	}
	if len(blocks) > 0 {
		return strings.TrimSpace(blocks[0].Content)
	}
	return strings.TrimSpace(response)
}

// StringArray parses a markdown-fenced JSON array of strings. Text around
// the array is ignored. Anything unusable yields an empty, non-nil slice.
func StringArray(response string) []string {
	out := []string{}
	raw := ExtractJSON(response)
	start, end := strings.Index(raw, "["), strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return out
	}
	raw = raw[start : end+1]
	if !gjson.Valid(raw) {
		return out
	}
	for _, item := range gjson.Parse(raw).Array() {
		if item.Type != gjson.String && item.Type != gjson.Number {
			continue
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
