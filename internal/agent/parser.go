package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// finalAnswerAction terminates the loop when used as the action name.
const finalAnswerAction = "Final Answer"

// ParseError marks a model reply the loop may retry.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "unparseable model reply: " + e.Reason
}

// Step is one parsed model reply: either a tool selection or a final
// answer carrying the raw terminal output.
type Step struct {
	Tool  string
	Args  map[string]any
	Final string
	Done  bool
}

// ParseStep classifies a model reply.
//
// A reply containing a JSON object must follow the structured reply
// protocol: {"action": ..., "action_input": ...}. A bare
// {"action_input": ...} object counts as a final answer and is passed
// through verbatim for the normalizer to unwrap. Replies without any
// JSON at all are treated as a plain-text final answer.
func ParseStep(raw string) (*Step, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty reply"}
	}

	block, ok := extractJSONBlock(trimmed)
	if !ok {
		return &Step{Done: true, Final: trimmed}, nil
	}

	var reply struct {
		Action      string          `json:"action"`
		ActionInput json.RawMessage `json:"action_input"`
	}
	if err := json.Unmarshal([]byte(block), &reply); err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	switch {
	case reply.Action == finalAnswerAction:
		return &Step{Done: true, Final: finalText(reply.ActionInput)}, nil

	case reply.Action != "":
		args, err := decodeArgs(reply.ActionInput)
		if err != nil {
			return nil, err
		}
		return &Step{Tool: reply.Action, Args: args}, nil

	case len(reply.ActionInput) > 0:
		// Final answer wrapped without an action; keep the raw block so
		// the output normalizer can unwrap action_input.
		return &Step{Done: true, Final: block}, nil

	default:
		return nil, &ParseError{Reason: "JSON object has no action"}
	}
}

func decodeArgs(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ParseError{Reason: "action_input must be an object of arguments"}
	}
	return args, nil
}

// finalText renders an action_input value as the terminal output
// string: strings verbatim, everything else re-serialized.
func finalText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// extractJSONBlock finds the outermost JSON object in text, stripping
// markdown code fences if present.
func extractJSONBlock(text string) (string, bool) {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		} else {
			text = rest
		}
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	// Unbalanced braces: hand back the fragment so the caller reports a
	// JSON error rather than silently treating it as prose.
	return text[start:], true
}
