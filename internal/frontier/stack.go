// Package frontier holds the pending-work stack of a crawl.
package frontier

import "errors"

// ErrEmpty is returned by Pop when no keys remain.
var ErrEmpty = errors.New("frontier empty")

// Stack is a LIFO of channel keys plus the set of keys already visited.
// The most recently pushed key is popped first, which yields a depth-first
// traversal. Stack is owned by the crawl loop and is not safe for concurrent use.
type Stack struct {
	items   []string
	visited map[string]struct{}
}

// New constructs an empty stack with room for capacity keys.
func New(capacity int) *Stack {
	if capacity < 0 {
		capacity = 0
	}
	return &Stack{
		items:   make([]string, 0, capacity),
		visited: make(map[string]struct{}),
	}
}

// Push adds key to the top of the stack.
func (s *Stack) Push(key string) {
	s.items = append(s.items, key)
}

// Pop removes and returns the top key.
func (s *Stack) Pop() (string, error) {
	n := len(s.items)
	if n == 0 {
		return "", ErrEmpty
	}
	key := s.items[n-1]
	s.items = s.items[:n-1]
	return key, nil
}

// Len returns the number of pending keys.
func (s *Stack) Len() int {
	return len(s.items)
}

// Visit marks key as visited. It reports false when key was already visited.
func (s *Stack) Visit(key string) bool {
	if _, ok := s.visited[key]; ok {
		return false
	}
	s.visited[key] = struct{}{}
	return true
}

// Visited reports whether key has been visited.
func (s *Stack) Visited(key string) bool {
	_, ok := s.visited[key]
	return ok
}
