package usecases

import "sync"

// ConnectionStateTracker records which connection hashes are currently
// connected. The set lives for the process only; a restart resets it no
// matter what is persisted. The vault never touches it — only the
// connection-lifecycle caller does.
type ConnectionStateTracker struct {
	mu        sync.Mutex
	connected map[string]struct{}
}

// NewConnectionStateTracker creates an empty tracker.
func NewConnectionStateTracker() *ConnectionStateTracker {
	return &ConnectionStateTracker{connected: make(map[string]struct{})}
}

// MarkConnected records a connection hash as connected.
func (t *ConnectionStateTracker) MarkConnected(hash string) {
	if hash == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected[hash] = struct{}{}
}

// Clear removes a single connection hash.
func (t *ConnectionStateTracker) Clear(hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.connected, hash)
}

// ClearAll empties the tracker. Disconnects clear everything: establishing a
// new connection supersedes the previous one in the single-active-connection
// model.
func (t *ConnectionStateTracker) ClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = make(map[string]struct{})
}

// IsConnected reports whether a connection hash is currently connected.
func (t *ConnectionStateTracker) IsConnected(hash string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.connected[hash]
	return ok
}
