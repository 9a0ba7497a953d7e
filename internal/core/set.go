package core

// set keeps values in a slice addressable by key. Removal swaps the last value into
// the freed slot, so order depends only on the sequence of operations and a seeded
// run picks the same members every time.
type set[T any] struct {
	keys  []string
	vals  []T
	index map[string]int
}

func newSet[T any]() *set[T] {
	return &set[T]{index: make(map[string]int)}
}

func (s *set[T]) len() int {
	return len(s.vals)
}

func (s *set[T]) has(key string) bool {
	_, ok := s.index[key]
	return ok
}

func (s *set[T]) get(key string) (T, bool) {
	i, ok := s.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return s.vals[i], true
}

func (s *set[T]) at(i int) T {
	return s.vals[i]
}

func (s *set[T]) add(key string, v T) bool {
	if s.has(key) {
		return false
	}
	s.index[key] = len(s.vals)
	s.keys = append(s.keys, key)
	s.vals = append(s.vals, v)
	return true
}

func (s *set[T]) remove(key string) bool {
	i, ok := s.index[key]
	if !ok {
		return false
	}
	last := len(s.vals) - 1
	if i != last {
		s.keys[i] = s.keys[last]
		s.vals[i] = s.vals[last]
		s.index[s.keys[i]] = i
	}
	var zero T
	s.vals[last] = zero
	s.keys = s.keys[:last]
	s.vals = s.vals[:last]
	delete(s.index, key)
	return true
}
