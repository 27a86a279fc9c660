package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

// LeaderboardWSHandler streams the leaderboard to authenticated websocket clients.
type LeaderboardWSHandler struct {
	authn    Authenticator
	profiles *app.ProfileService
	hub      *app.LeaderboardHub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewLeaderboardWSHandler(authn Authenticator, profiles *app.ProfileService, hub *app.LeaderboardHub, checkOrigin func(*http.Request) bool, logger *zap.Logger) *LeaderboardWSHandler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &LeaderboardWSHandler{
		authn:    authn,
		profiles: profiles,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS authenticates with the token query parameter (browsers cannot set headers on
// websocket requests), sends the current leaderboard and then every published update.
// Clients may send {"type":"refresh"} to get a fresh snapshot.
func (h *LeaderboardWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: domain.ErrMissingToken.Message})
		return
	}
	session, err := h.authn.Authenticate(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: domain.ErrInvalidToken.Message})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe()
	defer cancel()
	h.logger.Debug("leaderboard subscriber joined", zap.Int64("user_id", session.UserID))

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case entries, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: entries}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- h.snapshot(r)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "refresh":
			send <- h.snapshot(r)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *LeaderboardWSHandler) snapshot(r *http.Request) outboundMessage[any] {
	entries, err := h.profiles.Leaderboard(r.Context())
	if err != nil {
		h.logger.Error("leaderboard snapshot failed", zap.Error(err))
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "Failed to fetch leaderboard"}}
	}
	return outboundMessage[any]{Type: "leaderboard", Payload: entries}
}
