// Package audit writes append-only audit records for policy decisions,
// agent runs, and tool executions to a rotated JSON log.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kubesage/kubesage/internal/config"
)

const flushThreshold = 100

// Logger records audit events.
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Sync() error
	Close() error
}

type auditLogger struct {
	sink        *zap.Logger
	app         *zap.Logger
	mu          sync.Mutex
	buffer      []*Event
	flushTicker *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewLogger creates a buffered audit logger writing to the configured
// audit log file. Events are flushed every second or when the buffer
// fills. app receives internal errors of the audit path itself.
func NewLogger(cfg config.LoggingConfig, app *zap.Logger) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "logged_at"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	rotator := &lumberjack.Logger{
		Filename:   cfg.AuditLogPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(rotator),
		zapcore.InfoLevel,
	)

	l := &auditLogger{
		sink:        zap.New(core),
		app:         app,
		buffer:      make([]*Event, 0, flushThreshold),
		flushTicker: time.NewTicker(1 * time.Second),
		stopCh:      make(chan struct{}),
	}
	go l.autoFlush()
	return l
}

func (l *auditLogger) Log(_ context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= flushThreshold {
		return l.flushLocked()
	}
	return nil
}

func (l *auditLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}
	for _, event := range l.buffer {
		payload, err := json.Marshal(event)
		if err != nil {
			l.app.Error("marshal audit event",
				zap.Error(err),
				zap.String("event_type", string(event.EventType)))
			continue
		}
		l.sink.Info(string(payload),
			zap.String("correlation_id", event.CorrelationID),
			zap.String("event_type", string(event.EventType)),
			zap.String("result", string(event.Result)))
	}
	l.buffer = l.buffer[:0]
	return nil
}

func (l *auditLogger) autoFlush() {
	for {
		select {
		case <-l.flushTicker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

func (l *auditLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.flushLocked(); err != nil {
		return err
	}
	return l.sink.Sync()
}

func (l *auditLogger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.flushTicker.Stop()
	})
	return l.Sync()
}
