package groq

import (
	"encoding/json"
	"fmt"
	"strings"
)

// decodeStrictOrExtract decodes a model response that should be a JSON
// object. Strict decode first; if the model wrapped the object in prose or
// markdown fences, fall back to the outermost brace-delimited substring.
func decodeStrictOrExtract(raw string, out any) error {
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), out); err != nil {
		return fmt.Errorf("extracted object decode: %w", err)
	}
	return nil
}
