package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndReadMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AppendMessages(ctx, "sess-1",
		MessageRecord{Role: RoleHuman, Content: "how many pods?"},
		MessageRecord{Role: RoleAI, Content: "3 pods running"},
	)
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleHuman, msgs[0].Role)
	assert.Equal(t, "how many pods?", msgs[0].Content)
	assert.Equal(t, RoleAI, msgs[1].Role)
	assert.Equal(t, "3 pods running", msgs[1].Content)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestMessagesOrderedByInsertion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessages(ctx, "sess-1",
			MessageRecord{Role: RoleHuman, Content: string(rune('a' + i))}))
	}

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, string(rune('a'+i)), m.Content)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessages(ctx, "a", MessageRecord{Role: RoleHuman, Content: "one"}))
	require.NoError(t, s.AppendMessages(ctx, "b", MessageRecord{Role: RoleHuman, Content: "two"}))

	msgs, err := s.Messages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "one", msgs[0].Content)
}

func TestClearSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessages(ctx, "sess-1",
		MessageRecord{Role: RoleHuman, Content: "hello"}))
	require.NoError(t, s.ClearSession(ctx, "sess-1"))

	msgs, err := s.Messages(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Clearing an already empty session is not an error.
	require.NoError(t, s.ClearSession(ctx, "sess-1"))
	require.NoError(t, s.ClearSession(ctx, "never-existed"))
}

func TestMessagesUnknownSessionEmpty(t *testing.T) {
	s := newTestStore(t)
	msgs, err := s.Messages(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMigrateIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.AppendMessages(context.Background(), "s",
		MessageRecord{Role: RoleHuman, Content: "persisted"}))
	require.NoError(t, s1.Close())

	// Reopening runs migrations again without error or data loss.
	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	msgs, err := s2.Messages(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "persisted", msgs[0].Content)
}
