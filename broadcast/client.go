package broadcast

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"mediaserver/logger"
	"mediaserver/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Upgrader accepts dashboard websocket connections. Origins are checked by
// the CORS layer in front of it.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client streams hub events to one websocket connection
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	inbox <-chan types.Event
	log   logger.Logger
	done  chan struct{}
}

// NewClient subscribes conn to hub
func NewClient(hub *Hub, conn *websocket.Conn, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		hub:   hub,
		conn:  conn,
		inbox: hub.Subscribe(),
		log:   log,
		done:  make(chan struct{}),
	}
}

// Run pumps events until the peer goes away or the inbox is evicted.
// It blocks until both pumps have stopped.
func (c *Client) Run() {
	go c.readPump()
	c.writePump()
}

// readPump only watches for close frames and pong replies
func (c *Client) readPump() {
	defer close(c.done)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("WebSocket read error", logger.Error(err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unsubscribe(c.inbox)
		c.conn.Close()
		<-c.done
	}()

	for {
		select {
		case event, ok := <-c.inbox:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Debug("WebSocket write failed", logger.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
