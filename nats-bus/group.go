package natsbus

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// PublishGroup relays a group broadcast to the other nodes.
func (b *Bus) PublishGroup(path string, payload []byte) error {
	messageBytes, err := json.Marshal(&BroadcastMessage{
		NodeID:  b.nodeID,
		Path:    path,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	return b.NatsConnection.Publish(subject("group"), messageBytes)
}

// BindGroupBroadcast subscribes to group broadcasts published by other
// nodes. The bus's own publishes are suppressed by node id. Messages that
// do not decode are logged and dropped.
func (b *Bus) BindGroupBroadcast(handler func(path string, payload []byte)) error {
	sub, err := b.NatsConnection.Subscribe(subject("group"), func(msg *nats.Msg) {
		broadcast := &BroadcastMessage{}
		if err := json.Unmarshal(msg.Data, broadcast); err != nil {
			b.logger.Warn("dropping malformed group broadcast", slog.Any("error", err))
			return
		}
		if broadcast.NodeID == b.nodeID {
			return
		}
		handler(broadcast.Path, broadcast.Payload)
	})
	if err != nil {
		return err
	}

	b.unbindGroupBroadcast = func() {
		_ = sub.Unsubscribe()
	}

	return nil
}
