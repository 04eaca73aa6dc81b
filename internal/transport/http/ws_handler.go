package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"survey-flow-service/internal/app"
	"survey-flow-service/internal/domain"
)

type WSHandler struct {
	service  *app.SessionService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Value      any    `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string   `json:"message"`
	Missing []string `json:"missing,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// session use cases. Every accepted answer is answered with a full render
// of the session, and subscribed updates flow on the side so several tabs
// of the same session stay in sync.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	surveyID := r.URL.Query().Get("surveyId")
	if surveyID == "" {
		http.Error(w, "missing surveyId", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	joined, err := h.service.Join(r.Context(), surveyID, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), sessionID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", "sessionId", sessionID, "error", err)
				return
			}
		}
	}()

	// Queue the joined message before the update pump starts so it is
	// always the first frame on the wire.
	send <- outboundMessage[any]{Type: "joined", Payload: joined}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "render", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			state, err := h.service.SetAnswer(r.Context(), sessionID, payload.QuestionID, payload.Value)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "render", Payload: state}
		case "complete":
			state, err := h.service.Complete(r.Context(), sessionID)
			if err != nil {
				msg := errorPayload{Message: err.Error()}
				var incomplete *domain.IncompleteError
				if errors.As(err, &incomplete) {
					msg.Missing = incomplete.Missing
				}
				send <- outboundMessage[any]{Type: "error", Payload: msg}
				continue
			}
			send <- outboundMessage[any]{Type: "completed", Payload: state}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
