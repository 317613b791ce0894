package ws

import (
	"go.uber.org/zap"

	"collabnotes/internal/protocol"
)

// Relay delivers coordinator output to connections of the local hub.
// Delivery is fire-and-forget: a recipient whose outbox is full is closed
// so that it rejoins and resynchronizes instead of silently diverging.
type Relay struct {
	hub *Hub
}

func NewRelay(h *Hub) *Relay { return &Relay{hub: h} }

// BroadcastToAll implements coordinator.Relay.
func (r *Relay) BroadcastToAll(roomID string, recipients []string, msg protocol.Outbound) {
	r.fanout(roomID, recipients, "", msg)
}

// BroadcastExcludingSender implements coordinator.Relay.
func (r *Relay) BroadcastExcludingSender(roomID string, recipients []string, senderConnID string, msg protocol.Outbound) {
	r.fanout(roomID, recipients, senderConnID, msg)
}

// SendTo delivers msg to a single connection.
func (r *Relay) SendTo(connID string, msg protocol.Outbound) bool {
	raw, err := msg.Encode()
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", msg.Event), zap.Error(err))
		return false
	}
	c, ok := r.hub.get(connID)
	if !ok {
		return false
	}
	return r.deliver(c, raw)
}

func (r *Relay) fanout(roomID string, recipients []string, skip string, msg protocol.Outbound) {
	raw, err := msg.Encode()
	if err != nil {
		zap.L().Error("ws.encode", zap.String("event", msg.Event), zap.Error(err))
		return
	}

	sent, dropped := 0, 0
	for _, id := range recipients {
		if id == skip {
			continue
		}
		c, ok := r.hub.get(id)
		if !ok {
			dropped++
			continue
		}
		if r.deliver(c, raw) {
			sent++
		} else {
			dropped++
		}
	}
	zap.L().Debug("ws.broadcast",
		zap.String("room", roomID),
		zap.String("event", msg.Event),
		zap.Int("sent_to", sent),
		zap.Int("dropped", dropped),
	)
}

func (r *Relay) deliver(c *clientConn, raw []byte) bool {
	if c.enqueue(raw) {
		return true
	}
	if !c.closed() {
		zap.L().Warn("ws.slow_consumer", zap.String("conn", c.id))
		c.close()
	}
	return false
}
