package dislocation

import "sync"

// Shared is a copy-on-write handle to a Network. Handles created with Share
// point at the same network until one of them calls Modify, which gives that
// handle a private copy if any other handle still references the network.
type Shared struct {
	store *sharedStore
}

type sharedStore struct {
	mu     sync.Mutex
	nw     *Network
	owners int
}

// NewShared wraps nw in a copy-on-write handle. nw must not be used directly afterwards.
func NewShared(nw *Network) *Shared {
	return &Shared{store: &sharedStore{nw: nw, owners: 1}}
}

// Share returns a new handle referencing the same network.
func (s *Shared) Share() *Shared {
	s.store.mu.Lock()
	s.store.owners++
	s.store.mu.Unlock()
	return &Shared{store: s.store}
}

// Read returns the network for read only access.
func (s *Shared) Read() *Network {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.store.nw
}

// IsExclusive reports whether s is the only handle referencing its network.
func (s *Shared) IsExclusive() bool {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	return s.store.owners == 1
}

// Modify returns a network that may be mutated through s without affecting
// other handles, cloning the network first if it is shared.
func (s *Shared) Modify() *Network {
	old := s.store
	old.mu.Lock()
	defer old.mu.Unlock()
	if old.owners == 1 {
		return old.nw
	}
	old.owners--
	s.store = &sharedStore{nw: old.nw.Clone(), owners: 1}
	return s.store.nw
}

// Release drops the reference held by s. s must not be used afterwards.
func (s *Shared) Release() {
	s.store.mu.Lock()
	s.store.owners--
	s.store.mu.Unlock()
	s.store = nil
}
