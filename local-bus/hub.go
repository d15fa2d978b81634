// Package localbus relays group broadcasts between Apps living in the
// same process. Each App takes a Node from a shared Hub and installs it as
// its broadcast bus, after which a broadcast sent through any App reaches
// the connections of every other App on the hub.
package localbus

import (
	"sync"

	"github.com/google/uuid"
)

// Hub connects bus nodes together. The zero value is not usable; create
// hubs with NewHub.
type Hub struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{nodes: map[string]*Node{}}
}

// Node attaches a new bus endpoint to the hub.
func (h *Hub) Node() *Node {
	node := &Node{id: uuid.NewString(), hub: h}
	h.mu.Lock()
	h.nodes[node.id] = node
	h.mu.Unlock()
	return node
}

func (h *Hub) detach(id string) {
	h.mu.Lock()
	delete(h.nodes, id)
	h.mu.Unlock()
}

// peersOf snapshots every node except the sender, so delivery runs without
// holding the hub lock.
func (h *Hub) peersOf(senderID string) []*Node {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peers := make([]*Node, 0, len(h.nodes))
	for id, node := range h.nodes {
		if id == senderID {
			continue
		}
		peers = append(peers, node)
	}
	return peers
}

func (h *Hub) publishGroup(senderID, path string, payload []byte) {
	for _, node := range h.peersOf(senderID) {
		node.deliverGroup(path, payload)
	}
}

func (h *Hub) publishAll(senderID string, payload []byte) {
	for _, node := range h.peersOf(senderID) {
		node.deliverAll(payload)
	}
}
