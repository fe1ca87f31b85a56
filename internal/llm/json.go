package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON extracts the outermost JSON object from a model reply, which may
// be wrapped in prose or a code fence, and decodes it into T.
func ParseJSON[T any](reply string) (T, error) {
	var zero T
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start == -1 || end < start {
		return zero, fmt.Errorf("%w: no JSON object in reply", ErrDecode)
	}

	var out T
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return zero, fmt.Errorf("%w: unmarshal reply: %v", ErrDecode, err)
	}
	return out, nil
}
