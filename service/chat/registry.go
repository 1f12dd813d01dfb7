package chat

import (
	"sort"
	"sync"
)

// ActivityOnline is the label every user starts with at registration.
const ActivityOnline = "Online"

// Registry is the single owner of live-connection state: the user <->
// connection mapping plus the per-user activity labels. One mutex guards
// all of it so a registry mutation and the broadcast snapshot it triggers
// are one atomic step; no caller ever sees the maps half-updated.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]*Client
	byConn   map[string]*Client
	activity map[string]string
}

// Snapshot is a point-in-time view taken under the registry lock, used to
// fan out without holding it.
type Snapshot struct {
	Online []string  // sorted user ids
	Conns  []*Client // connection handles at snapshot time
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]*Client),
		byConn:   make(map[string]*Client),
		activity: make(map[string]string),
	}
}

// Register binds the client to its user, unconditionally replacing any
// previous mapping for that user. The displaced connection (if any) is
// returned so the caller can close it; it is already unlinked here.
// Activity resets to "Online".
func (r *Registry) Register(c *Client) (evicted *Client, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[c.UserID]; ok && prev != c {
		delete(r.byConn, prev.ConnID)
		evicted = prev
	}
	r.byUser[c.UserID] = c
	r.byConn[c.ConnID] = c
	r.activity[c.UserID] = ActivityOnline

	return evicted, r.snapshotLocked()
}

// Lookup returns the live connection for a user, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// RemoveByConn removes the entry whose connection id matches and drops the
// user's activity. Unknown connection ids are a no-op (ok=false), so a
// stale disconnect never fires a spurious broadcast.
func (r *Registry) RemoveByConn(connID string) (userID string, snap Snapshot, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, found := r.byConn[connID]
	if !found {
		return "", Snapshot{}, false
	}
	delete(r.byConn, connID)
	// only unbind the user if this conn is still the user's current one;
	// an evicted connection must not take the replacement down with it
	if cur, okUser := r.byUser[c.UserID]; okUser && cur.ConnID == connID {
		delete(r.byUser, c.UserID)
		delete(r.activity, c.UserID)
	}
	return c.UserID, r.snapshotLocked(), true
}

// SetActivity upserts the label for a registered user and returns the
// connection snapshot for the delta broadcast, atomic with the mutation.
// Users not in the registry are ignored (ok=false).
func (r *Registry) SetActivity(userID, label string) (conns []*Client, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, present := r.byUser[userID]; !present {
		return nil, false
	}
	r.activity[userID] = label
	return r.connsLocked(), true
}

// ActivitySnapshot returns a copy of the user -> label map.
func (r *Registry) ActivitySnapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.activity))
	for k, v := range r.activity {
		out[k] = v
	}
	return out
}

// OnlineIDs returns the sorted set of registered user ids.
func (r *Registry) OnlineIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// Conns returns the current connection handles.
func (r *Registry) Conns() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connsLocked()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

func (r *Registry) snapshotLocked() Snapshot {
	return Snapshot{Online: r.onlineLocked(), Conns: r.connsLocked()}
}

func (r *Registry) onlineLocked() []string {
	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) connsLocked() []*Client {
	conns := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		conns = append(conns, c)
	}
	return conns
}
