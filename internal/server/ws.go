package server

import (
	"net/http"
	"time"

	"github.com/aman-zulfiqar/spl-token-manager/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = 54 * time.Second
	wsMaxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is the envelope pushed to live subscribers
type wsMessage struct {
	Type      string                    `json:"type"` // snapshot or operation
	Snapshot  *models.DashboardSnapshot `json:"snapshot,omitempty"`
	Operation *models.OperationEvent    `json:"operation,omitempty"`
	Timestamp int64                     `json:"timestamp"`
}

// Live streams dashboard snapshots, and journaled operations when Redis is
// configured, over a websocket.
func (h *Handlers) Live(c echo.Context) error {
	if h.Dashboard == nil {
		return h.err(c, http.StatusServiceUnavailable, "live dashboard is not running", nil)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log().WithError(err).Warn("failed to upgrade websocket connection")
		return nil
	}
	log := h.log().WithField("remote", c.RealIP())
	log.Debug("live client connected")

	ctx := c.Request().Context()
	snaps, unsubscribe := h.Dashboard.Subscribe()
	defer unsubscribe()

	var ops <-chan *models.OperationEvent
	if h.Cache != nil {
		ops, err = h.Cache.SubscribeOperations(ctx)
		if err != nil {
			log.WithError(err).Warn("live client gets no operation feed")
		}
	}

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	if err := writeJSON(conn, wsMessage{Type: "snapshot", Snapshot: h.Dashboard.Snapshot(), Timestamp: time.Now().UnixMilli()}); err != nil {
		return nil
	}

	for {
		select {
		case <-closed:
			log.Debug("live client disconnected")
			return nil
		case <-ctx.Done():
			return nil
		case snap, ok := <-snaps:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "dashboard stopped"),
					time.Now().Add(wsWriteWait))
				return nil
			}
			if err := writeJSON(conn, wsMessage{Type: "snapshot", Snapshot: snap, Timestamp: time.Now().UnixMilli()}); err != nil {
				log.WithError(err).Debug("live write failed")
				return nil
			}
		case op, ok := <-ops:
			if !ok {
				ops = nil
				continue
			}
			if err := writeJSON(conn, wsMessage{Type: "operation", Operation: op, Timestamp: time.Now().UnixMilli()}); err != nil {
				log.WithError(err).Debug("live write failed")
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// readPump discards client messages and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithError(err).Debug("unexpected websocket close")
			}
			return
		}
	}
}
