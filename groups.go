package portaros

import (
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// groupShardCount must stay a power of two; shard selection masks the hash.
const groupShardCount = 32

type groupShard struct {
	mu    sync.RWMutex
	paths map[string]map[string]Connection
}

// GroupRegistry is the live map of WebSocket connections grouped by the path
// they connected on. Paths are sharded by hash so connections on different
// paths rarely contend. One registry may back several Apps in a process;
// BroadcastAll then reaches every connection each of them registered.
type GroupRegistry struct {
	shards [groupShardCount]groupShard
	logger *slog.Logger
}

// NewGroupRegistry returns an empty registry. Send failures during broadcast
// are logged through logger and otherwise swallowed.
func NewGroupRegistry(logger *slog.Logger) *GroupRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &GroupRegistry{logger: logger}
	for i := range r.shards {
		r.shards[i].paths = map[string]map[string]Connection{}
	}
	return r
}

func (r *GroupRegistry) shardFor(path string) *groupShard {
	return &r.shards[xxhash.Sum64String(path)&(groupShardCount-1)]
}

// Register adds a connection to a path group. Registering the same id twice
// replaces the handle, so re-registration is idempotent.
func (r *GroupRegistry) Register(path, id string, conn Connection) {
	shard := r.shardFor(path)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	group, ok := shard.paths[path]
	if !ok {
		group = map[string]Connection{}
		shard.paths[path] = group
	}
	group[id] = conn
}

// Unregister removes a connection from a path group, reporting whether it
// was present. Absent entries are not an error; the enclosing group is
// dropped when it empties.
func (r *GroupRegistry) Unregister(path, id string) bool {
	shard := r.shardFor(path)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	group, ok := shard.paths[path]
	if !ok {
		return false
	}
	if _, ok := group[id]; !ok {
		return false
	}
	delete(group, id)
	if len(group) == 0 {
		delete(shard.paths, path)
	}
	return true
}

// GroupSize reports the number of connections registered on a path.
func (r *GroupRegistry) GroupSize(path string) int {
	shard := r.shardFor(path)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return len(shard.paths[path])
}

// Size reports the total number of registered connections.
func (r *GroupRegistry) Size() int {
	total := 0
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		for _, group := range shard.paths {
			total += len(group)
		}
		shard.mu.RUnlock()
	}
	return total
}

// BroadcastGroup sends payload to every connection on a path except
// excludeID. Delivery is best effort: the group is snapshotted before
// sending, so connections may close mid-broadcast, and per-connection send
// errors are logged and skipped. Returns the number of successful sends.
func (r *GroupRegistry) BroadcastGroup(path string, payload []byte, excludeID string) int {
	shard := r.shardFor(path)
	shard.mu.RLock()
	group := shard.paths[path]
	targets := make([]Connection, 0, len(group))
	for id, conn := range group {
		if id == excludeID {
			continue
		}
		targets = append(targets, conn)
	}
	shard.mu.RUnlock()

	return r.deliver(path, payload, targets)
}

// BroadcastAll sends payload to every registered connection except
// excludeID, with the same best-effort semantics as BroadcastGroup.
func (r *GroupRegistry) BroadcastAll(payload []byte, excludeID string) int {
	sent := 0
	for i := range r.shards {
		shard := &r.shards[i]
		shard.mu.RLock()
		var targets []Connection
		var paths []string
		for path, group := range shard.paths {
			for id, conn := range group {
				if id == excludeID {
					continue
				}
				targets = append(targets, conn)
				paths = append(paths, path)
			}
		}
		shard.mu.RUnlock()

		for j, conn := range targets {
			if err := conn.Send(payload); err != nil {
				r.logger.Warn("broadcast send failed",
					slog.String("path", paths[j]),
					slog.String("connection", conn.ID()),
					slog.Any("error", err))
				continue
			}
			sent++
		}
	}
	return sent
}

func (r *GroupRegistry) deliver(path string, payload []byte, targets []Connection) int {
	sent := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err != nil {
			r.logger.Warn("broadcast send failed",
				slog.String("path", path),
				slog.String("connection", conn.ID()),
				slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent
}
