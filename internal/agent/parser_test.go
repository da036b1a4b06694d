package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStepToolSelection(t *testing.T) {
	step, err := ParseStep(`{"action": "kubectl_command", "action_input": {"command": "kubectl get pods"}}`)
	require.NoError(t, err)
	assert.False(t, step.Done)
	assert.Equal(t, "kubectl_command", step.Tool)
	assert.Equal(t, "kubectl get pods", step.Args["command"])
}

func TestParseStepFinalAnswer(t *testing.T) {
	step, err := ParseStep(`{"action": "Final Answer", "action_input": "3 pods running"}`)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, "3 pods running", step.Final)
}

func TestParseStepFencedJSON(t *testing.T) {
	raw := "Here is my choice:\n```json\n{\"action\": \"current_time\", \"action_input\": {}}\n```"
	step, err := ParseStep(raw)
	require.NoError(t, err)
	assert.Equal(t, "current_time", step.Tool)
	assert.Empty(t, step.Args)
}

func TestParseStepPlainTextIsFinal(t *testing.T) {
	step, err := ParseStep("All pods are healthy.")
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.Equal(t, "All pods are healthy.", step.Final)
}

func TestParseStepBareActionInputIsFinal(t *testing.T) {
	raw := `{"action_input": "3 pods running"}`
	step, err := ParseStep(raw)
	require.NoError(t, err)
	assert.True(t, step.Done)
	// Raw block is preserved so Normalize can unwrap it.
	assert.JSONEq(t, raw, step.Final)
}

func TestParseStepMissingActionInput(t *testing.T) {
	step, err := ParseStep(`{"action": "loki_labels_query"}`)
	require.NoError(t, err)
	assert.Equal(t, "loki_labels_query", step.Tool)
	assert.NotNil(t, step.Args)
	assert.Empty(t, step.Args)
}

func TestParseStepErrors(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"whitespace":       "   \n  ",
		"broken json":      `{"action": "kubectl_command", "action_input": {`,
		"no action key":    `{"thought": "hmm"}`,
		"string tool args": `{"action": "kubectl_command", "action_input": "kubectl get pods"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStep(raw)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestParseStepFinalAnswerObjectInput(t *testing.T) {
	step, err := ParseStep(`{"action": "Final Answer", "action_input": {"summary": "ok"}}`)
	require.NoError(t, err)
	assert.True(t, step.Done)
	assert.JSONEq(t, `{"summary": "ok"}`, step.Final)
}

func TestExtractJSONBlockNested(t *testing.T) {
	block, ok := extractJSONBlock(`prefix {"a": {"b": "c}"}} suffix`)
	require.True(t, ok)
	assert.JSONEq(t, `{"a": {"b": "c}"}}`, block)
}

func TestNormalizeExtractsActionInput(t *testing.T) {
	assert.Equal(t, "3 pods running", Normalize(`{"action_input": "3 pods running"}`))
}

func TestNormalizeMissingActionInput(t *testing.T) {
	assert.Equal(t, "no action_input", Normalize(`{"output": "whatever"}`))
}

func TestNormalizePlainTextPassthrough(t *testing.T) {
	assert.Equal(t, "all good", Normalize("all good"))
}

func TestNormalizeInvalidJSONPassthrough(t *testing.T) {
	raw := `{"action_input": broken`
	assert.Equal(t, raw, Normalize(raw))
}

func TestNormalizeObjectActionInput(t *testing.T) {
	out := Normalize(`{"action_input": {"pods": 3}}`)
	m, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), m["pods"])
}

func TestNormalizeNonObjectJSONPassthrough(t *testing.T) {
	assert.Equal(t, `[1, 2, 3]`, Normalize(`[1, 2, 3]`))
}
