package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kubesage/kubesage/internal/tools"
)

// debugBasePrompt frames the restricted debugging agent.
const debugBasePrompt = `You are a Kubernetes operations assistant. You help engineers
inspect and debug a cluster by running read-oriented commands through the
available tools and summarizing what you find. Prefer precise, factual
answers grounded in tool output. Never invent cluster state.`

// analysisBasePrompt frames the full cluster analysis agent.
const analysisBasePrompt = `You are a Kubernetes cluster analyst. You investigate the
current state of the cluster: pod health, resource usage, warnings and
errors in the logs. Focus on roughly the last 30 minutes unless the user
asks otherwise. Use the tools to gather evidence, then summarize the
situation clearly, calling out anything abnormal. Never invent cluster
state.`

// formatInstructions teaches the structured reply protocol the parser
// expects. Kept separate so every agent shares the exact same wording.
const formatInstructions = `Respond with a single JSON object and nothing else.

To call a tool:
{"action": "<tool name>", "action_input": {<arguments>}}

To give your final answer:
{"action": "Final Answer", "action_input": "<your answer>"}

After each tool call you will receive an Observation with the tool's
result. Continue until you can give a final answer.`

// parseRetryNotice is sent back when a reply could not be parsed.
const parseRetryNotice = `Your last reply could not be parsed. Respond with exactly one
JSON object: {"action": "<tool name or Final Answer>", "action_input": ...}`

// SystemPrompt renders a base prompt plus the tool catalogue and the
// reply format contract.
func SystemPrompt(base string, registry *tools.Registry) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nYou have access to the following tools:\n")
	for _, t := range registry.List() {
		fmt.Fprintf(&b, "\n%s: %s\n", t.Name, t.Description)
		if len(t.InputSchema) > 0 {
			if schema, err := json.Marshal(t.InputSchema); err == nil {
				fmt.Fprintf(&b, "Arguments schema: %s\n", schema)
			}
		}
	}
	b.WriteString("\n")
	b.WriteString(formatInstructions)
	return b.String()
}

func unknownToolNotice(name string, registry *tools.Registry) string {
	names := make([]string, 0)
	for _, t := range registry.List() {
		names = append(names, t.Name)
	}
	return fmt.Sprintf("Tool %q does not exist. Available tools: %s. %s",
		name, strings.Join(names, ", "), parseRetryNotice)
}
