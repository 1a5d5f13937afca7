// client/roster.go
package client

import "sync"

// roster is the ordered, duplicate-free list of players signed in to this
// game. It is purely local bookkeeping; announcing changes to the network is
// the caller's business.
type roster struct {
	mu    sync.Mutex
	names []string
}

// add appends name in arrival order. It reports whether the roster changed;
// a name already present is left where it is.
func (r *roster) add(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.names {
		if n == name {
			return false
		}
	}
	r.names = append(r.names, name)
	return true
}

// remove deletes name, keeping the order of everyone else. It reports
// whether the roster changed.
func (r *roster) remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i], r.names[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns a copy of the roster, never nil.
func (r *roster) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
