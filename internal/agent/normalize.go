package agent

import (
	"encoding/json"
	"strings"
)

// noActionInput is returned when a JSON-object reply lacks the
// action_input field.
const noActionInput = "no action_input"

// Normalize unwraps a terminal loop output for the API reply. If the
// output is a JSON object its action_input value is extracted (or the
// fixed placeholder when absent); anything else passes through
// unchanged.
func Normalize(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return raw
	}
	inner, ok := obj["action_input"]
	if !ok {
		return noActionInput
	}
	var value any
	if err := json.Unmarshal(inner, &value); err != nil {
		return raw
	}
	return value
}
