package store

import "family-tasks/internal/model"

// ChangeKind names the mutation behind a Change.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeRestored ChangeKind = "restored"
	ChangeLoaded   ChangeKind = "loaded"
)

// Change is published after every mutation, carrying the stats it produced.
type Change struct {
	Kind  ChangeKind  `json:"kind"`
	Task  model.Task  `json:"task"`
	Stats model.Stats `json:"stats"`
}

// Subscribe returns a buffered channel that receives every Change.
func (s *Store) Subscribe() chan Change {
	ch := make(chan Change, 64)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(ch chan Change) {
	s.subMu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

// publish must be called with mu held so Changes arrive in commit order.
func (s *Store) publish(c Change) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for ch := range s.subs {
		select {
		case ch <- c:
		default:
			// subscriber is behind; drop rather than block the writer
		}
	}
}
