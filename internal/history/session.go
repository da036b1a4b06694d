package history

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Coordinator serializes access to conversation sessions. All reads
// and writes for one session go through its mutex, so a read followed
// by an append within a single critical section cannot interleave with
// another request on the same session. Distinct sessions do not block
// each other.
type Coordinator struct {
	store     Store
	defaultID string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCoordinator wraps store. defaultID is used for requests that do
// not name a session; empty means a fresh UUID is generated.
func NewCoordinator(store Store, defaultID string) *Coordinator {
	if defaultID == "" {
		defaultID = uuid.NewString()
	}
	return &Coordinator{
		store:     store,
		defaultID: defaultID,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Resolve maps a request-supplied session ID to the effective one.
func (c *Coordinator) Resolve(sessionID string) string {
	if sessionID == "" {
		return c.defaultID
	}
	return sessionID
}

// DefaultID returns the process-wide default session.
func (c *Coordinator) DefaultID() string { return c.defaultID }

func (c *Coordinator) sessionLock(sessionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[sessionID] = l
	}
	return l
}

// Do runs fn while holding the session's lock. fn receives the store
// and may read and append; the whole of fn is one critical section.
func (c *Coordinator) Do(sessionID string, fn func(Store) error) error {
	l := c.sessionLock(sessionID)
	l.Lock()
	defer l.Unlock()
	return fn(c.store)
}

// Messages returns the session's turns oldest first.
func (c *Coordinator) Messages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	var out []MessageRecord
	err := c.Do(sessionID, func(s Store) error {
		var err error
		out, err = s.Messages(ctx, sessionID)
		return err
	})
	return out, err
}

// AppendExchange stores a user turn and the assistant reply as one
// atomic pair.
func (c *Coordinator) AppendExchange(ctx context.Context, sessionID, userMsg, aiMsg string) error {
	return c.Do(sessionID, func(s Store) error {
		return s.AppendMessages(ctx, sessionID,
			MessageRecord{Role: RoleHuman, Content: userMsg},
			MessageRecord{Role: RoleAI, Content: aiMsg},
		)
	})
}

// Clear removes all turns of the session. Clearing an already empty
// session succeeds.
func (c *Coordinator) Clear(ctx context.Context, sessionID string) error {
	return c.Do(sessionID, func(s Store) error {
		return s.ClearSession(ctx, sessionID)
	})
}
