package natsbus

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// PublishAll relays a global broadcast to the other nodes.
func (b *Bus) PublishAll(payload []byte) error {
	messageBytes, err := json.Marshal(&BroadcastMessage{
		NodeID:  b.nodeID,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return b.NatsConnection.Publish(subject("all"), messageBytes)
}

// BindAllBroadcast subscribes to global broadcasts published by other
// nodes, with the same suppression and drop semantics as
// BindGroupBroadcast.
func (b *Bus) BindAllBroadcast(handler func(payload []byte)) error {
	sub, err := b.NatsConnection.Subscribe(subject("all"), func(msg *nats.Msg) {
		broadcast := &BroadcastMessage{}
		if err := json.Unmarshal(msg.Data, broadcast); err != nil {
			b.logger.Warn("dropping malformed broadcast", slog.Any("error", err))
			return
		}
		if broadcast.NodeID == b.nodeID {
			return
		}
		handler(broadcast.Payload)
	})
	if err != nil {
		return err
	}

	b.unbindAllBroadcast = func() {
		_ = sub.Unsubscribe()
	}

	return nil
}
