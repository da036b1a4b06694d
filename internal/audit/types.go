package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	// Policy gate events
	EventGateAllowed     EventType = "gate.allowed"
	EventGateDenied      EventType = "gate.denied"
	EventGateUnavailable EventType = "gate.unavailable"

	// Agent run events
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"

	// Tool events
	EventToolExecuted EventType = "tool.executed"
	EventToolFailed   EventType = "tool.failed"

	// Session events
	EventSessionCleared EventType = "session.cleared"

	// System events
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
	EventConfigReload   EventType = "system.config_reload"
)

// Result is the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultDenied  Result = "denied"
)

// Event is a single audit record.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	SessionID string `json:"session_id,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Tool      string `json:"tool,omitempty"`

	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// NewEvent creates an event stamped with the current UTC time.
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultSuccess,
	}
}

// WithCorrelationID sets the ID linking events from one request.
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithSession sets the conversation session the event belongs to.
func (e *Event) WithSession(sessionID string) *Event {
	e.SessionID = sessionID
	return e
}

// WithAgent names the agent instantiation handling the request.
func (e *Event) WithAgent(agent string) *Event {
	e.Agent = agent
	return e
}

// WithTool names the tool involved in the event.
func (e *Event) WithTool(tool string) *Event {
	e.Tool = tool
	return e
}

// WithResult sets the event outcome.
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithDescription sets a human-readable summary.
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithError records the failure and marks the event as failed.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
		e.Result = ResultFailure
	}
	return e
}

// WithDuration records elapsed time in milliseconds.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.DurationMs = d.Milliseconds()
	return e
}

// WithMetadata attaches one key/value pair.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// GenerateCorrelationID returns a fresh request correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}
