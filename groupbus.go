package portaros

// GroupBus relays broadcast traffic between processes so SendToGroup and
// SendToAll reach connections registered on other nodes. An App publishes
// every broadcast it originates and binds handlers to replay inbound
// broadcasts into its local group registry.
//
// Implementations must not deliver a node's own publishes back to its
// handlers; the originating node has already delivered locally.
type GroupBus interface {
	// PublishGroup relays a group broadcast for a path.
	PublishGroup(path string, payload []byte) error

	// PublishAll relays a process-wide broadcast.
	PublishAll(payload []byte) error

	// BindGroupBroadcast registers the handler for inbound group broadcasts.
	BindGroupBroadcast(handler func(path string, payload []byte)) error

	// BindAllBroadcast registers the handler for inbound process-wide
	// broadcasts.
	BindAllBroadcast(handler func(payload []byte)) error

	// Unbind releases the bound handlers and any underlying subscriptions.
	Unbind() error
}
