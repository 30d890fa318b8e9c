package broadcast

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 1024
	// Per-connection send buffer; slow readers drop events past this.
	sendBuffer = 64
)

// WSClient adapts one websocket connection to the Observer contract.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger
}

// Deliver queues data for the connection's write pump. It never blocks; a
// full buffer drops the event for this observer only.
func (c *WSClient) Deliver(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// readPump consumes (and discards) inbound frames so pings and close frames
// are processed. It owns unregistration on disconnect.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump pushes queued events and keepalive pings to the peer.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an HTTP request and registers the connection with the hub.
func ServeWS(hub *Hub, logger *zap.Logger, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	log := logger.Named("broadcast.ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}
		client := &WSClient{
			hub:  hub,
			conn: conn,
			send: make(chan []byte, sendBuffer),
			log:  log,
		}
		hub.Register(client)
		go client.writePump()
		go client.readPump()
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
