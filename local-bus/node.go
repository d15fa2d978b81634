package localbus

import (
	"sync"

	"github.com/portaros/portaros"
)

// Node is one endpoint on a Hub. Publishes fan out to every other node on
// the hub, never back to the publisher.
type Node struct {
	id  string
	hub *Hub

	mu           sync.RWMutex
	groupHandler func(path string, payload []byte)
	allHandler   func(payload []byte)
}

var _ portaros.GroupBus = &Node{}

// PublishGroup relays a group broadcast to the other nodes on the hub.
func (n *Node) PublishGroup(path string, payload []byte) error {
	n.hub.publishGroup(n.id, path, payload)
	return nil
}

// PublishAll relays a global broadcast to the other nodes on the hub.
func (n *Node) PublishAll(payload []byte) error {
	n.hub.publishAll(n.id, payload)
	return nil
}

// BindGroupBroadcast installs the handler receiving group broadcasts
// published by other nodes.
func (n *Node) BindGroupBroadcast(handler func(path string, payload []byte)) error {
	n.mu.Lock()
	n.groupHandler = handler
	n.mu.Unlock()
	return nil
}

// BindAllBroadcast installs the handler receiving global broadcasts
// published by other nodes.
func (n *Node) BindAllBroadcast(handler func(payload []byte)) error {
	n.mu.Lock()
	n.allHandler = handler
	n.mu.Unlock()
	return nil
}

// Unbind clears the handlers and detaches the node from the hub.
func (n *Node) Unbind() error {
	n.hub.detach(n.id)
	n.mu.Lock()
	n.groupHandler = nil
	n.allHandler = nil
	n.mu.Unlock()
	return nil
}

func (n *Node) deliverGroup(path string, payload []byte) {
	n.mu.RLock()
	handler := n.groupHandler
	n.mu.RUnlock()
	if handler != nil {
		handler(path, payload)
	}
}

func (n *Node) deliverAll(payload []byte) {
	n.mu.RLock()
	handler := n.allHandler
	n.mu.RUnlock()
	if handler != nil {
		handler(payload)
	}
}
