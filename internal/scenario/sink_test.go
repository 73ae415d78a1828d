package scenario_test

import (
	"context"
	"sync"

	"codeberg.org/mutker/edgebench/internal/sensor"
)

type countingSink struct {
	mu        sync.Mutex
	locations map[string]int
}

func (s *countingSink) Send(_ context.Context, r sensor.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locations == nil {
		s.locations = make(map[string]int)
	}
	s.locations[r.Location]++
	return nil
}

func (*countingSink) Close() error { return nil }

func (s *countingSink) distinct() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for range s.locations {
		n++
	}
	return n
}
