package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"advisorjournal/internal/models"
	"advisorjournal/internal/services"
)

const (
	progressPingInterval = 30 * time.Second
	progressReadTimeout  = 90 * time.Second
)

// progressMessage is one server-to-client frame on the goal-progress stream
type progressMessage struct {
	Type  string                    `json:"type"` // connected, goal_progress, error
	Event *models.GoalProgressEvent `json:"event,omitempty"`
	Error string                    `json:"error,omitempty"`
}

// ProgressStreamHandler pushes goal-progress verdicts to connected clients as they are detected
type ProgressStreamHandler struct {
	subscriber services.ProgressSubscriber
}

// NewProgressStreamHandler creates a new progress stream handler
func NewProgressStreamHandler(subscriber services.ProgressSubscriber) *ProgressStreamHandler {
	return &ProgressStreamHandler{subscriber: subscriber}
}

// Upgrade only lets WebSocket upgrade requests through
func (h *ProgressStreamHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handle streams the user's events until either side closes the connection
// GET /ws/goal-progress
func (h *ProgressStreamHandler) Handle(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		_ = c.WriteJSON(progressMessage{Type: "error", Error: "Authentication required"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe, err := h.subscriber.SubscribeGoalProgress(ctx, userID)
	if err != nil {
		log.Printf("❌ [GOALS] Failed to open progress stream for user %s: %v", userID, err)
		_ = c.WriteJSON(progressMessage{Type: "error", Error: "Progress stream unavailable"})
		return
	}
	defer unsubscribe()

	c.SetReadDeadline(time.Now().Add(progressReadTimeout))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(progressReadTimeout))
	})

	// Clients only send control frames; reading surfaces the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := c.WriteJSON(progressMessage{Type: "connected"}); err != nil {
		return
	}
	log.Printf("🔌 [GOALS] Progress stream opened for user %s", userID)

	ticker := time.NewTicker(progressPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Printf("🔌 [GOALS] Progress stream closed for user %s", userID)
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.WriteJSON(progressMessage{Type: "goal_progress", Event: &event}); err != nil {
				log.Printf("⚠️ [GOALS] Progress stream write failed for user %s: %v", userID, err)
				return
			}
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
