package api

import (
	"net/http"
	"time"

	"TickFuse/internal/usecase"
	xlogger "TickFuse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// StreamEchoHandler pushes engine snapshots to WebSocket subscribers.
// Each client gets the full snapshot at the push interval; slow clients
// are disconnected rather than buffered.
type StreamEchoHandler struct {
	logger   *xlogger.Logger
	engine   *usecase.Engine
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewStreamEchoHandler(logger *xlogger.Logger, engine *usecase.Engine, interval time.Duration) *StreamEchoHandler {
	if interval <= 0 {
		interval = time.Second
	}
	return &StreamEchoHandler{
		logger:   logger,
		engine:   engine,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/snapshot", h.Snapshot)
}

// Snapshot upgrades the connection and streams snapshots until the client
// goes away or a write fails.
func (h *StreamEchoHandler) Snapshot(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", xlogger.Error(err))
		return err
	}
	defer conn.Close()
	h.logger.Info("ws subscriber connected", xlogger.String("remote", conn.RemoteAddr().String()))

	// drain client frames so pings and close messages are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := h.engine.Snapshot()
			if snap == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				h.logger.Debug("ws subscriber gone", xlogger.Error(err))
				return nil
			}
		}
	}
}
