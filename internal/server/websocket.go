package server

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kubesage/kubesage/internal/agent"
	"github.com/kubesage/kubesage/internal/history"
	"github.com/kubesage/kubesage/internal/policy"
)

// WebSocket frame types streamed to the client.
const (
	frameState    = "state"
	frameComplete = "complete"
	frameError    = "error"
)

// wsFrame is one streamed message.
type wsFrame struct {
	Type      string         `json:"type"`
	State     agent.State    `json:"state,omitempty"`
	Cycle     int            `json:"cycle,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Text      string         `json:"text,omitempty"`
	Reply     map[string]any `json:"reply,omitempty"`
	IsSafe    *bool          `json:"is_safe,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket streams reasoning progress for gated ask requests.
// Each inbound frame is one askRequest; the connection stays open for
// follow-up questions on the same session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(frame wsFrame) {
		frame.Timestamp = time.Now().UTC()
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(frame); err != nil {
			s.logger.Debug("websocket write failed", zap.Error(err))
		}
	}

	for {
		var req askRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		if req.Message == "" {
			send(wsFrame{Type: frameError, Error: "message is required"})
			continue
		}
		s.streamAsk(r, &req, send)
	}
}

func (s *Server) streamAsk(r *http.Request, req *askRequest, send func(wsFrame)) {
	ctx := r.Context()
	sessionID := s.coordinator.Resolve(req.SessionID)

	if s.cfg.Policy.Enabled {
		verdict, err := s.gate.Check(ctx, req.Message)
		if err != nil {
			detail := "Safety check service error"
			if errors.Is(err, policy.ErrJudgeUnavailable) {
				detail = err.Error()
			}
			send(wsFrame{Type: frameError, Error: detail})
			return
		}
		if !verdict.Allowed {
			unsafe := false
			send(wsFrame{
				Type:   frameComplete,
				Reply:  map[string]any{"output": policy.DenialMessage},
				IsSafe: &unsafe,
			})
			return
		}
	}

	var output any
	runErr := s.coordinator.Do(sessionID, func(store history.Store) error {
		records, err := store.Messages(ctx, sessionID)
		if err != nil {
			return err
		}
		res, err := s.debugLoop.Run(ctx, req.Message, s.historyWindow(records), func(ev agent.Event) {
			send(wsFrame{
				Type:  frameState,
				State: ev.State,
				Cycle: ev.Cycle,
				Tool:  ev.Tool,
				Text:  ev.Text,
			})
		})
		if err != nil {
			return err
		}
		output = res.Output
		return store.AppendMessages(ctx, sessionID,
			history.MessageRecord{Role: history.RoleHuman, Content: req.Message},
			history.MessageRecord{Role: history.RoleAI, Content: outputText(res)},
		)
	})
	if runErr != nil {
		s.logger.Error("websocket agent run failed",
			zap.String("session_id", sessionID), zap.Error(runErr))
		send(wsFrame{Type: frameError, Error: internalErrorDetail})
		return
	}

	safe := true
	send(wsFrame{
		Type:   frameComplete,
		Reply:  map[string]any{"output": output},
		IsSafe: &safe,
	})
}
