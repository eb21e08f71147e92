package evo

import (
	"slices"
	"sync"
)

// Listener observes a calculation. Callbacks run synchronously on the
// orchestrator goroutine between generations and must return quickly.
type Listener interface {
	IntermediateResult(result *Result)
	FinalResult(result *Result)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnIntermediate func(result *Result)
	OnFinal        func(result *Result)
}

func (l *ListenerFuncs) IntermediateResult(result *Result) {
	if l.OnIntermediate != nil {
		l.OnIntermediate(result)
	}
}

func (l *ListenerFuncs) FinalResult(result *Result) {
	if l.OnFinal != nil {
		l.OnFinal(result)
	}
}

type listenerSet struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (s *listenerSet) add(l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil || slices.Contains(s.listeners, l) {
		return false
	}
	s.listeners = append(s.listeners, l)
	return true
}

func (s *listenerSet) remove(l Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := slices.Index(s.listeners, l)
	if idx < 0 {
		return false
	}
	s.listeners = slices.Delete(s.listeners, idx, idx+1)
	return true
}

func (s *listenerSet) snapshot() []Listener {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.listeners)
}

func (s *listenerSet) intermediate(result *Result) {
	for _, l := range s.snapshot() {
		l.IntermediateResult(result)
	}
}

func (s *listenerSet) final(result *Result) {
	for _, l := range s.snapshot() {
		l.FinalResult(result)
	}
}
