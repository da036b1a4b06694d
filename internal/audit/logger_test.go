package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/config"
)

func newTestLogger(t *testing.T) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l := NewLogger(config.LoggingConfig{
		AuditLogPath: path,
		MaxSizeMB:    1,
		MaxBackups:   1,
		MaxAgeDays:   1,
	}, zap.NewNop())
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestLogAndSync(t *testing.T) {
	l, path := newTestLogger(t)

	ev := NewEvent(EventGateDenied).
		WithCorrelationID("corr-1").
		WithSession("sess-1").
		WithResult(ResultDenied).
		WithDescription("state-changing request rejected")
	require.NoError(t, l.Log(context.Background(), ev))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "gate.denied")
	assert.Contains(t, content, "corr-1")
	assert.Contains(t, content, "sess-1")
}

func TestAutoFlush(t *testing.T) {
	l, path := newTestLogger(t)

	require.NoError(t, l.Log(context.Background(), NewEvent(EventRunCompleted)))

	// The background ticker flushes without an explicit Sync.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "run.completed")
	}, 3*time.Second, 100*time.Millisecond)
}

func TestEventBuilder(t *testing.T) {
	ev := NewEvent(EventToolFailed).
		WithTool("kubectl_command").
		WithAgent("debug").
		WithError(assert.AnError).
		WithDuration(1500 * time.Millisecond).
		WithMetadata("cycle", 3)

	assert.Equal(t, EventToolFailed, ev.EventType)
	assert.Equal(t, "kubectl_command", ev.Tool)
	assert.Equal(t, ResultFailure, ev.Result)
	assert.Equal(t, int64(1500), ev.DurationMs)
	assert.Equal(t, 3, ev.Metadata["cycle"])
	assert.False(t, ev.Timestamp.IsZero())
}

func TestGenerateCorrelationID(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
