package services

import "sync"

// Selection is the set of ids picked for a batch operation, kept in the order
// they were picked.
type Selection struct {
	mu  sync.Mutex
	ids []uint
	set map[uint]struct{}
}

func NewSelection() *Selection {
	return &Selection{set: make(map[uint]struct{})}
}

// Toggle adds id if absent or removes it, and reports whether it is now selected.
func (s *Selection) Toggle(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[id]; ok {
		s.removeLocked(id)
		return false
	}
	s.addLocked(id)
	return true
}

func (s *Selection) Add(ids ...uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.set[id]; !ok {
			s.addLocked(id)
		}
	}
}

func (s *Selection) Remove(ids ...uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, ok := s.set[id]; ok {
			s.removeLocked(id)
		}
	}
}

func (s *Selection) Has(id uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.set[id]
	return ok
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = nil
	s.set = make(map[uint]struct{})
}

func (s *Selection) IDs() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]uint(nil), s.ids...)
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids)
}

func (s *Selection) addLocked(id uint) {
	s.set[id] = struct{}{}
	s.ids = append(s.ids, id)
}

func (s *Selection) removeLocked(id uint) {
	delete(s.set, id)
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return
		}
	}
}
