package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// clientConn is one live websocket plus its outbox. Only writePump touches
// the socket for writing; everybody else enqueues.
type clientConn struct {
	id      string
	rawConn *websocket.Conn
	send    chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newClientConn(id string, raw *websocket.Conn, outbox int) *clientConn {
	return &clientConn{
		id:      id,
		rawConn: raw,
		send:    make(chan []byte, outbox),
		done:    make(chan struct{}),
	}
}

// enqueue never blocks. It reports false when the outbox is full or the
// connection is already closing.
func (c *clientConn) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close asks the write pump to shut the socket down. Safe to call from any
// goroutine, any number of times.
func (c *clientConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *clientConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// writePump drains the outbox and keeps the connection alive with pings.
func (c *clientConn) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.rawConn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.rawConn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws.write_failed", zap.String("conn", c.id), zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.rawConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
