package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"ipzy-gateway/internal/domain"
	"ipzy-gateway/internal/i18n"
)

// WSHandler streams attempt snapshots to the quiz view and accepts its actions. The delayed
// advance and the completion navigation arrive here without polling.
type WSHandler struct {
	server   *Server
	upgrader websocket.Upgrader
}

func NewWSHandler(server *Server, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		server: server,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ServeWS attaches to the attempt loaded by GET /api/quiz. Closing the socket does not tear the
// attempt down; a reload reconnects to the same one.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	logger := h.server.logger
	tab, _ := h.server.tab(r)

	updates, cancel, err := h.server.deps.Flow.Subscribe(tab)
	if err != nil && !errors.Is(err, domain.ErrAttemptNotLoaded) {
		logger.Error("ws subscribe failed", zap.Error(err))
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}

	conn, upErr := h.upgrader.Upgrade(w, r, nil)
	if upErr != nil {
		logger.Warn("ws upgrade failed", zap.Error(upErr))
		if cancel != nil {
			cancel()
		}
		return
	}
	defer conn.Close()

	if err != nil {
		_, body := h.server.quizErrorBody(r, err)
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: body})
		return
	}
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("ws write failed", zap.Error(err))
				// unblocks the read loop
				conn.Close()
				for range send {
				}
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					// attempt replaced or torn down; the client reloads
					select {
					case send <- outboundMessage{Type: "closed"}:
					case <-closeSignals:
					}
					return
				}
				select {
				case send <- outboundMessage{Type: "snapshot", Payload: snap}:
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
		if msg, ok := h.dispatch(r, inbound); ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch runs one client action. Snapshots reach the client through the subscription, so only
// navigations and errors are answered directly.
func (h *WSHandler) dispatch(r *http.Request, inbound inboundMessage) (outboundMessage, bool) {
	flow := h.server.deps.Flow
	tab, _ := h.server.tab(r)

	switch inbound.Type {
	case "answer":
		var payload answerRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == 0 {
			return outboundMessage{Type: "error", Payload: errorBody{Code: "bad_request", Message: i18n.T(r.Context(), "BadRequest")}}, true
		}
		if _, err := flow.Select(r.Context(), tab, payload.QuestionID, payload.Value); err != nil {
			_, body := h.server.quizErrorBody(r, err)
			return outboundMessage{Type: "error", Payload: body}, true
		}
		return outboundMessage{}, false
	case "back":
		_, nav, err := flow.Back(tab)
		if err != nil {
			_, body := h.server.quizErrorBody(r, err)
			return outboundMessage{Type: "error", Payload: body}, true
		}
		if nav == nil {
			return outboundMessage{}, false
		}
		return outboundMessage{Type: "navigation", Payload: nav}, true
	case "confirmLogin":
		return outboundMessage{Type: "navigation", Payload: flow.ConfirmLogin(tab)}, true
	default:
		return outboundMessage{Type: "error", Payload: errorBody{Code: "unsupported", Message: i18n.T(r.Context(), "BadRequest")}}, true
	}
}
