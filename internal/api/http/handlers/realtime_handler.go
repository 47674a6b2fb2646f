package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/event-service/internal/auth"
	"github.com/spec-kit/event-service/internal/domain"
	"github.com/spec-kit/event-service/internal/realtime"
	"github.com/spec-kit/event-service/internal/service"
)

const (
	wsUserIDKey  = "ws_user_id"
	maxFrameSize = 64 * 1024
)

// RealtimeHandler serves the websocket channel carrying joinEvent/leaveEvent
// intents and attendeeUpdate notifications.
type RealtimeHandler struct {
	hub        *realtime.Hub
	membership *service.MembershipService
	logger     *zap.Logger
	timeout    time.Duration
}

// NewRealtimeHandler constructs handler. timeout bounds the work done for a
// single inbound frame.
func NewRealtimeHandler(hub *realtime.Hub, membership *service.MembershipService, logger *zap.Logger, timeout time.Duration) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RealtimeHandler{hub: hub, membership: membership, logger: logger.Named("realtime"), timeout: timeout}
}

// Upgrade rejects plain HTTP requests and records the authenticated user, if
// any, for the connection.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		c.Locals(wsUserIDKey, principal.UserID())
	}
	return c.Next()
}

// Serve returns the websocket endpoint.
func (h *RealtimeHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(wsUserIDKey).(string)
		writerStopped := h.hub.Register(conn)
		defer func() {
			h.hub.Unregister(conn)
			<-writerStopped
		}()

		conn.SetReadLimit(maxFrameSize)
		_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
		})

		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("websocket read failed", zap.Error(err))
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(realtime.PongWait))
			if messageType != websocket.TextMessage {
				continue
			}
			h.HandleMessage(data, userID)
		}
	})
}

// HandleMessage processes one inbound frame. Failures are logged and never
// reach the client. When the connection is authenticated, frames naming a
// different user are rejected.
func (h *RealtimeHandler) HandleMessage(data []byte, authenticatedUserID string) {
	frame, err := realtime.DecodeFrame(data)
	if err != nil {
		h.logger.Warn("ignoring malformed frame", zap.Error(err))
		return
	}

	intent, ok := realtime.IntentFor(frame.Event)
	if !ok {
		h.logger.Debug("ignoring unknown frame", zap.String("event", frame.Event))
		return
	}

	eventID, userID, err := frame.MembershipArgs()
	if err != nil {
		h.logger.Warn("ignoring frame with invalid arguments", zap.String("event", frame.Event), zap.Error(err))
		return
	}
	if authenticatedUserID != "" && userID.String() != domain.CanonicalID(authenticatedUserID) {
		h.logger.Warn("ignoring frame for another user",
			zap.String("event", frame.Event),
			zap.String("user_id", userID.String()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := h.membership.Apply(ctx, eventID, userID, intent); err != nil {
		level := h.logger.Warn
		if errors.Is(err, context.DeadlineExceeded) {
			level = h.logger.Error
		}
		level("membership intent failed",
			zap.String("event", frame.Event),
			zap.String("event_id", eventID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}
