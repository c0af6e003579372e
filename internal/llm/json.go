package llm

import (
	"fmt"
	"strings"
)

// ExtractJSONObject pulls the outermost JSON object out of a model
// response. Models asked for structured output occasionally wrap the
// payload in prose or code fences; callers unmarshal the returned slice.
func ExtractJSONObject(response string) (string, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		preview := response
		if len(preview) > 300 {
			preview = preview[:300] + "... (truncated)"
		}
		return "", fmt.Errorf("no JSON object found in response (%d chars): %q", len(response), preview)
	}
	return response[start : end+1], nil
}
