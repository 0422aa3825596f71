package realtime

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Websocket timing constants shared by every feed connection.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. The feed is one-way;
	// clients only send pings/pongs and close frames.
	maxMessageSize = 512
)

// Client pumps one subscription's events onto a websocket connection.
// It owns the connection lifecycle: when either pump exits (peer gone,
// write failure, or the subscription closed) the connection is closed
// and the subscription released. Unsubscribe being idempotent makes the
// double release on the two exit paths harmless.
type Client struct {
	conn *websocket.Conn
	sub  *Subscription
	log  *logrus.Entry
}

// NewClient wraps an upgraded websocket connection around a room
// subscription.
func NewClient(conn *websocket.Conn, sub *Subscription) *Client {
	return &Client{
		conn: conn,
		sub:  sub,
		log: logrus.WithFields(logrus.Fields{
			"component": "realtime-client",
			"room_id":   sub.roomID,
		}),
	}
}

// Run starts the read and write pumps and blocks until the write pump
// exits. The caller's subscription is released on every exit path.
func (c *Client) Run() {
	go c.readPump()
	c.writePump()
}

// readPump discards inbound frames and watches for the peer closing
// the connection. On exit it releases the subscription, which in turn
// unblocks the write pump.
func (c *Client) readPump() {
	defer func() {
		c.sub.Unsubscribe()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("websocket read error")
			}
			return
		}
	}
}

// writePump serializes subscription events to the peer and keeps the
// connection alive with pings. It exits when the subscription channel
// closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sub.Unsubscribe()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.sub.C():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Subscription closed (slow consumer drop or room
				// teardown); tell the peer to reconnect.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseServiceRestart, "resubscribe"))
				return
			}
			payload, err := ev.Encode()
			if err != nil {
				c.log.WithError(err).Error("encode event for websocket")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
