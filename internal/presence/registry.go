// Package presence tracks which users are online and on which connection.
package presence

import (
	"sort"
	"sync"
)

// Entry is the user snapshot bound to a live connection.
type Entry struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

// Registry is the in-memory bidirectional index between connection ids and
// user ids. A user has at most one active connection; a connection maps to at
// most one user. Nothing is persisted, a restart starts empty.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]Entry
	byUser map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]Entry),
		byUser: make(map[string]string),
	}
}

// Register binds connID to the user, overwriting any previous binding of
// either side. It returns the connection id the user was previously bound to,
// which no longer resolves to anyone, or "" if there was none.
func (r *Registry) Register(connID string, e Entry) (superseded string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// The connection re-joined as somebody else.
	if prev, ok := r.byConn[connID]; ok && prev.UserID != e.UserID {
		if r.byUser[prev.UserID] == connID {
			delete(r.byUser, prev.UserID)
		}
	}
	if old, ok := r.byUser[e.UserID]; ok && old != connID {
		delete(r.byConn, old)
		superseded = old
	}
	r.byConn[connID] = e
	r.byUser[e.UserID] = connID
	return superseded
}

// Remove drops the connection. found reports whether it was registered;
// active reports whether it was still the user's current connection.
func (r *Registry) Remove(connID string) (e Entry, found, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found = r.byConn[connID]
	if !found {
		return Entry{}, false, false
	}
	delete(r.byConn, connID)
	if r.byUser[e.UserID] == connID {
		delete(r.byUser, e.UserID)
		active = true
	}
	return e, true, active
}

func (r *Registry) UserByConnection(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[connID]
	return e, ok
}

func (r *Registry) ConnectionByUser(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// List returns a snapshot of the online users ordered by user id.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	list := make([]Entry, 0, len(r.byConn))
	for _, e := range r.byConn {
		list = append(list, e)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].UserID < list[j].UserID })
	return list
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}
