package service

import (
	"fmt"
	"sort"
	"sync"
)

// State is the lifecycle of one engine's canonical value.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	// StateError keeps the last good value alongside the failure.
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "uninitialized"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "uninitialized":
		*s = StateUninitialized
	case "loading":
		*s = StateLoading
	case "ready":
		*s = StateReady
	case "error":
		*s = StateError
	default:
		return fmt.Errorf("unknown state %q", b)
	}
	return nil
}

// machine is the canonical state cell of an engine. Readers never observe
// a half-applied transition.
type machine[T any] struct {
	mu    sync.RWMutex
	state State
	value T
	err   error
}

func newMachine[T any](initial T) *machine[T] {
	return &machine[T]{value: initial}
}

// markLoading moves to Loading. The value stays readable meanwhile.
func (m *machine[T]) markLoading() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateLoading
}

// finish ends a load with value, in Error when err is set.
func (m *machine[T]) finish(value T, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.err = err
	if err != nil {
		m.state = StateError
	} else {
		m.state = StateReady
	}
}

// set replaces the value and clears any error
func (m *machine[T]) set(value T) {
	m.finish(value, nil)
}

// fail records err and keeps the current value.
func (m *machine[T]) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.state = StateError
}

// reset drops the value, e.g. when the identity changes to another account.
func (m *machine[T]) reset(value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = value
	m.err = nil
	m.state = StateUninitialized
}

func (m *machine[T]) get() (State, T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.value, m.err
}

func (m *machine[T]) current() T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}

func (m *machine[T]) currentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// subscribers fans snapshots out to registered callbacks.
type subscribers[S any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(S)
}

func (s *subscribers[S]) add(fn func(S)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(S))
	}
	s.next++
	id := s.next
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers[S]) notify(snap S) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(S), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
