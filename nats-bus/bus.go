// Package natsbus relays group broadcasts across processes over NATS.
// Every process publishes its broadcasts to shared subjects and replays
// the broadcasts of other processes into its own group registry, so a
// SendToGroup on any node reaches the group's connections everywhere.
package natsbus

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/portaros/portaros"
)

const subjectPrefix = "portaros.broadcast"

func subject(kind string) string {
	return subjectPrefix + "." + kind
}

// BroadcastMessage is the wire form of a relayed broadcast. NodeID
// identifies the publishing process so subscribers can drop their own
// messages; Path is empty for global broadcasts.
type BroadcastMessage struct {
	NodeID  string `json:"nodeId"`
	Path    string `json:"path,omitempty"`
	Payload []byte `json:"payload"`
}

// Bus is a GroupBus backed by a NATS connection. The connection is
// exported so callers can manage its lifecycle directly.
type Bus struct {
	NatsConnection *nats.Conn

	nodeID               string
	logger               *slog.Logger
	unbindGroupBroadcast func()
	unbindAllBroadcast   func()
}

var _ portaros.GroupBus = &Bus{}

// New creates a bus on an established NATS connection.
func New(conn *nats.Conn) *Bus {
	return &Bus{
		NatsConnection:       conn,
		nodeID:               uuid.NewString(),
		logger:               slog.Default(),
		unbindGroupBroadcast: func() {},
		unbindAllBroadcast:   func() {},
	}
}

// SetLogger replaces the logger used for dropped-message warnings. Call
// before binding.
func (b *Bus) SetLogger(logger *slog.Logger) {
	b.logger = logger
}

// Unbind removes the bus subscriptions. The NATS connection itself stays
// open.
func (b *Bus) Unbind() error {
	b.unbindGroupBroadcast()
	b.unbindAllBroadcast()
	b.unbindGroupBroadcast = func() {}
	b.unbindAllBroadcast = func() {}
	return nil
}
