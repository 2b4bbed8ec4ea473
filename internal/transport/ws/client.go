package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// outFrame is the outbound wire shape, mirroring domain.Envelope but with
// an already-built payload.
type outFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client owns one websocket connection: a read loop that drives the
// dispatcher and a write loop fed by a buffered send channel. Only the
// write loop touches the connection for writes.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  *logrus.Entry

	pingInterval time.Duration
	writeWait    time.Duration
}

func newClient(id string, conn *websocket.Conn, sendBuf int, pingInterval time.Duration, log *logrus.Entry) *Client {
	return &Client{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, sendBuf),
		done:         make(chan struct{}),
		log:          log,
		pingInterval: pingInterval,
		writeWait:    10 * time.Second,
	}
}

func (c *Client) ID() string { return c.id }

// Send queues one event frame. It never blocks: a closed connection or a
// full buffer drops the frame and reports false. Completions from handlers
// that outlive the connection land here harmlessly.
func (c *Client) Send(event string, payload interface{}) bool {
	b, err := json.Marshal(outFrame{Event: event, Data: payload})
	if err != nil {
		c.log.WithError(err).WithField("event", event).Error("marshal outbound frame failed")
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump delivers inbound frames to the handler one at a time, in
// arrival order. Runs on the HTTP handler goroutine.
func (c *Client) readPump(ctx context.Context, h Handler, readLimit int64) {
	defer func() {
		h.HandleDisconnect(c)
		c.close()
	}()

	c.conn.SetReadLimit(readLimit)
	readWait := c.pingInterval * 2
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("read failed")
			}
			return
		}
		h.HandleMessage(ctx, c, frame)
	}
}

// writePump is the single writer for the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case b := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
