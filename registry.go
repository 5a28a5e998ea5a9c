package chat

import (
	"io"
	"sync"
)

// Stream is the outbound half of a peer connection held by the Registry.
type Stream interface {
	io.Writer
	io.Closer
}

// Target is one entry of a Registry snapshot.
type Target struct {
	Addr   string
	Stream Stream
}

// Registry maps a peer's remote address to its outbound stream.
// A single mutex covers the whole map and is never held across I/O.
type Registry struct {
	mu    sync.Mutex
	peers map[string]Stream
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]Stream)}
}

// Register inserts or replaces the stream for addr and returns the peer count.
// A replaced stream is closed.
func (r *Registry) Register(addr string, s Stream) int {
	r.mu.Lock()
	old, replaced := r.peers[addr]
	r.peers[addr] = s
	count := len(r.peers)
	r.mu.Unlock()

	if replaced && old != s {
		_ = old.Close()
	}
	return count
}

// Deregister removes addr if present and returns the peer count.
func (r *Registry) Deregister(addr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.peers, addr)
	return len(r.peers)
}

// DeregisterStream removes addr only while it still maps to s, so a stale
// reader cannot remove the peer that replaced it. It returns the peer count.
func (r *Registry) DeregisterStream(addr string, s Stream) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.peers[addr]; ok && cur == s {
		delete(r.peers, addr)
	}
	return len(r.peers)
}

// Targets returns a snapshot of all registered streams.
func (r *Registry) Targets() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()

	targets := make([]Target, 0, len(r.peers))
	for addr, s := range r.peers {
		targets = append(targets, Target{Addr: addr, Stream: s})
	}
	return targets
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.peers)
}

// CloseAll closes every registered stream. Entries stay registered until
// their readers report the disconnect.
func (r *Registry) CloseAll() {
	for _, t := range r.Targets() {
		_ = t.Stream.Close()
	}
}
