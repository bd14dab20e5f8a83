// Package articulation handles the boundary between free-form model text
// and the structured pipeline: extracting a single JSON command object from
// whatever the model wrote, and rendering prompt payloads from state. Any
// non-JSON or schema-invalid response is a failure, never partial success.
package articulation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrNoJSON is wrapped by ExtractObject when no decodable object exists.
var ErrNoJSON = fmt.Errorf("no JSON object found in model output")

// StripFences removes markdown code-fence wrapping (``` or ```json) when the
// whole payload is fenced. Inner content is returned untouched otherwise.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// drop the language tag line
		body = body[idx+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// ExtractObject returns the first complete top-level JSON object in the text
// that decodes cleanly. Fenced wrapping is tolerated; anything else around
// the object is ignored.
func ExtractObject(text string) (map[string]any, []byte, error) {
	for _, candidate := range objectCandidates(StripFences(text)) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
			return obj, []byte(candidate), nil
		}
	}
	return nil, nil, ErrNoJSON
}

// objectCandidates scans for balanced top-level {...} spans with a byte
// state machine that skips string contents and escapes. Iterating bytes is
// safe for the ASCII delimiters involved; UTF-8 continuation bytes never
// collide with them.
func objectCandidates(s string) []string {
	var candidates []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		b := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				candidates = append(candidates, s[start:i+1])
				start = -1
			}
		}
	}
	return candidates
}
