// Package agent implements the bounded reasoning loop that alternates
// model calls with tool executions until a final answer emerges.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/config"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/metrics"
	"github.com/kubesage/kubesage/internal/tools"
)

// ErrExhausted is returned when the loop hits its cycle cap or its
// parse-error budget without producing a final answer.
var ErrExhausted = errors.New("reasoning loop exhausted")

// State names the loop's phase, reported through events.
type State string

const (
	StateThinking  State = "THINKING"
	StateActing    State = "ACTING"
	StateObserving State = "OBSERVING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Event is a progress notification emitted while the loop runs.
type Event struct {
	State       State          `json:"state"`
	Cycle       int            `json:"cycle"`
	Tool        string         `json:"tool,omitempty"`
	Args        map[string]any `json:"args,omitempty"`
	Observation string         `json:"observation,omitempty"`
	Text        string         `json:"text,omitempty"`
}

// Sink receives loop events. May be nil.
type Sink func(Event)

// Result is a successful loop termination.
type Result struct {
	// Output is the normalized reply payload.
	Output any
	// Raw is the terminal output before normalization.
	Raw string
	// Cycles is the number of model calls consumed.
	Cycles int
}

// Loop drives one agent instantiation: a model, a tool registry, and
// the bounds that keep a run finite.
type Loop struct {
	name         string
	completer    llm.Completer
	registry     *tools.Registry
	systemPrompt string
	maxCycles    int
	maxParseErrs int
	logger       *zap.Logger
}

// NewDebugLoop builds the restricted debugging agent.
func NewDebugLoop(completer llm.Completer, registry *tools.Registry, cfg config.AgentConfig, logger *zap.Logger) *Loop {
	return newLoop("debug", debugBasePrompt, completer, registry, cfg, logger)
}

// NewAnalysisLoop builds the full cluster analysis agent.
func NewAnalysisLoop(completer llm.Completer, registry *tools.Registry, cfg config.AgentConfig, logger *zap.Logger) *Loop {
	return newLoop("analysis", analysisBasePrompt, completer, registry, cfg, logger)
}

func newLoop(name, basePrompt string, completer llm.Completer, registry *tools.Registry, cfg config.AgentConfig, logger *zap.Logger) *Loop {
	maxCycles := cfg.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 15
	}
	maxParseErrs := cfg.MaxParseErrors
	if maxParseErrs < 0 {
		maxParseErrs = 0
	}
	return &Loop{
		name:         name,
		completer:    completer,
		registry:     registry,
		systemPrompt: SystemPrompt(basePrompt, registry),
		maxCycles:    maxCycles,
		maxParseErrs: maxParseErrs,
		logger:       logger.With(zap.String("agent", name)),
	}
}

// Name returns the agent instantiation name.
func (l *Loop) Name() string { return l.name }

// Run executes the loop for one user input. history carries prior
// conversation turns, oldest first. sink, when non-nil, receives
// progress events.
//
// Tool failures are absorbed as observations and never abort the run.
// The run fails only when the model backend fails, the parse-error
// budget is spent, or the cycle cap is reached.
func (l *Loop) Run(ctx context.Context, input string, history []llm.Message, sink Sink) (*Result, error) {
	emit := func(ev Event) {
		if sink != nil {
			sink(ev)
		}
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.User(input))

	start := time.Now()
	parseErrs := 0

	for cycle := 1; cycle <= l.maxCycles; cycle++ {
		emit(Event{State: StateThinking, Cycle: cycle})

		reply, err := l.completer.Complete(ctx, l.systemPrompt, msgs)
		if err != nil {
			l.fail(cycle, start, emit)
			return nil, fmt.Errorf("agent %s: %w", l.name, err)
		}

		step, err := ParseStep(reply)
		if err == nil && step.Tool != "" && !l.registry.Has(step.Tool) {
			err = &ParseError{Reason: fmt.Sprintf("unknown tool %q", step.Tool)}
			msgs = append(msgs, llm.Assistant(reply), llm.User(unknownToolNotice(step.Tool, l.registry)))
		}
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			parseErrs++
			l.logger.Warn("reply parse failed",
				zap.Int("cycle", cycle),
				zap.Int("parse_errors", parseErrs),
				zap.String("reason", parseErr.Reason))
			if parseErrs >= l.maxParseErrs {
				l.fail(cycle, start, emit)
				return nil, fmt.Errorf("%w: parse-error budget spent after %d attempts", ErrExhausted, parseErrs)
			}
			if step == nil || step.Tool == "" {
				msgs = append(msgs, llm.Assistant(reply), llm.User(parseRetryNotice))
			}
			continue
		}

		if step.Done {
			emit(Event{State: StateDone, Cycle: cycle, Text: step.Final})
			metrics.AgentRuns.WithLabelValues(l.name, "done").Inc()
			metrics.AgentCycles.WithLabelValues(l.name).Observe(float64(cycle))
			l.logger.Info("run completed",
				zap.Int("cycles", cycle),
				zap.Duration("elapsed", time.Since(start)))
			return &Result{
				Output: Normalize(step.Final),
				Raw:    step.Final,
				Cycles: cycle,
			}, nil
		}

		emit(Event{State: StateActing, Cycle: cycle, Tool: step.Tool, Args: step.Args})
		observation, err := l.registry.Execute(ctx, step.Tool, step.Args)
		if err != nil {
			// Registration was checked above; anything here is a bug,
			// surface it to the model as an observation anyway.
			observation = fmt.Sprintf(`{"status":"error","error":%q}`, err.Error())
		}
		emit(Event{State: StateObserving, Cycle: cycle, Tool: step.Tool, Observation: observation})

		msgs = append(msgs, llm.Assistant(reply), llm.User("Observation: "+observation))
	}

	l.fail(l.maxCycles, start, emit)
	return nil, fmt.Errorf("%w: no final answer within %d cycles", ErrExhausted, l.maxCycles)
}

func (l *Loop) fail(cycle int, start time.Time, emit func(Event)) {
	emit(Event{State: StateFailed, Cycle: cycle})
	metrics.AgentRuns.WithLabelValues(l.name, "failed").Inc()
	l.logger.Warn("run failed",
		zap.Int("cycles", cycle),
		zap.Duration("elapsed", time.Since(start)))
}
