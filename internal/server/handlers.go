package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/agent"
	"github.com/kubesage/kubesage/internal/audit"
	"github.com/kubesage/kubesage/internal/history"
	"github.com/kubesage/kubesage/internal/llm"
	"github.com/kubesage/kubesage/internal/metrics"
	"github.com/kubesage/kubesage/internal/policy"
)

const internalErrorDetail = "Internal error occurred while processing the request"

// askRequest is the body of /ask and /ask_current.
type askRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// askResponse mirrors the reply/is_safe contract.
type askResponse struct {
	Reply  map[string]any `json:"reply"`
	IsSafe bool           `json:"is_safe"`
}

// handleAsk is the policy-gated debugging endpoint.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, ok := decodeAsk(w, r)
	if !ok {
		return
	}
	sessionID := s.coordinator.Resolve(req.SessionID)
	correlationID := audit.GenerateCorrelationID()

	if s.cfg.Policy.Enabled {
		verdict, err := s.gate.Check(r.Context(), req.Message)
		if err != nil {
			if errors.Is(err, policy.ErrJudgeUnavailable) {
				writeError(w, http.StatusServiceUnavailable, "Safety check service error: "+err.Error())
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Safety check service error")
			return
		}
		if !verdict.Allowed {
			writeJSON(w, http.StatusOK, askResponse{
				Reply:  map[string]any{"output": policy.DenialMessage},
				IsSafe: false,
			})
			return
		}
	}

	s.runAgent(r.Context(), w, s.debugLoop, sessionID, correlationID, req.Message, true)
}

// handleAskCurrent is the ungated cluster analysis endpoint.
func (s *Server) handleAskCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	req, ok := decodeAsk(w, r)
	if !ok {
		return
	}
	sessionID := s.coordinator.Resolve(req.SessionID)
	correlationID := audit.GenerateCorrelationID()

	s.runAgent(r.Context(), w, s.analysisLoop, sessionID, correlationID, req.Message, true)
}

// runAgent executes the loop inside the session's critical section:
// read history, run, and append the exchange without interleaving with
// concurrent requests on the same session.
func (s *Server) runAgent(ctx context.Context, w http.ResponseWriter, loop *agent.Loop, sessionID, correlationID, message string, isSafe bool) {
	start := time.Now()
	var output any

	runErr := s.coordinator.Do(sessionID, func(store history.Store) error {
		records, err := store.Messages(ctx, sessionID)
		if err != nil {
			return err
		}
		res, err := loop.Run(ctx, message, s.historyWindow(records), nil)
		if err != nil {
			return err
		}
		output = res.Output
		if err := store.AppendMessages(ctx, sessionID,
			history.MessageRecord{Role: history.RoleHuman, Content: message},
			history.MessageRecord{Role: history.RoleAI, Content: outputText(res)},
		); err != nil {
			return err
		}
		metrics.SessionMessages.WithLabelValues(history.RoleHuman).Inc()
		metrics.SessionMessages.WithLabelValues(history.RoleAI).Inc()
		return nil
	})

	if s.auditor != nil {
		eventType := audit.EventRunCompleted
		if runErr != nil {
			eventType = audit.EventRunFailed
		}
		_ = s.auditor.Log(ctx, audit.NewEvent(eventType).
			WithCorrelationID(correlationID).
			WithSession(sessionID).
			WithAgent(loop.Name()).
			WithError(runErr).
			WithDuration(time.Since(start)))
	}

	if runErr != nil {
		s.logger.Error("agent run failed",
			zap.String("agent", loop.Name()),
			zap.String("session_id", sessionID),
			zap.Error(runErr))
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Reply:  map[string]any{"output": output},
		IsSafe: isSafe,
	})
}

// historyWindow converts stored turns into model messages, keeping the
// configured number of trailing exchanges.
func (s *Server) historyWindow(records []history.MessageRecord) []llm.Message {
	if n := s.cfg.Session.RecentWindow; n > 0 && len(records) > 2*n {
		records = records[len(records)-2*n:]
	}
	msgs := make([]llm.Message, 0, len(records))
	for _, rec := range records {
		switch rec.Role {
		case history.RoleHuman:
			msgs = append(msgs, llm.User(rec.Content))
		case history.RoleAI:
			msgs = append(msgs, llm.Assistant(rec.Content))
		}
	}
	return msgs
}

// outputText renders a normalized output as the stored assistant turn.
func outputText(res *agent.Result) string {
	if s, ok := res.Output.(string); ok {
		return s
	}
	data, err := json.Marshal(res.Output)
	if err != nil {
		return res.Raw
	}
	return string(data)
}

func decodeAsk(w http.ResponseWriter, r *http.Request) (*askRequest, bool) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return nil, false
	}
	return &req, true
}

// ─── History endpoints ───────────────────────────────────────────────

type historyMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleHistoryGet(w, r)
	case http.MethodDelete:
		s.handleHistoryDelete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	sessionID := s.coordinator.Resolve(r.URL.Query().Get("session_id"))
	records, err := s.coordinator.Messages(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("history read failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}

	msgs := make([]historyMessage, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, historyMessage{Type: rec.Role, Content: rec.Content})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":    sessionID,
		"message_count": len(msgs),
		"messages":      msgs,
	})
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := s.coordinator.Resolve(r.URL.Query().Get("session_id"))
	if err := s.coordinator.Clear(r.Context(), sessionID); err != nil {
		s.logger.Error("history clear failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, internalErrorDetail)
		return
	}
	if s.auditor != nil {
		_ = s.auditor.Log(r.Context(), audit.NewEvent(audit.EventSessionCleared).
			WithSession(sessionID))
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cleared"})
}

// ─── Health ──────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
