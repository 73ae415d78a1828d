package scenario_test

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"codeberg.org/mutker/edgebench/internal/sensor"
)

// node is a stub supervisor or peer counting hits per path.
type node struct {
	srv  *httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newNode(t *testing.T, routes map[string]http.HandlerFunc) *node {
	t.Helper()
	n := &node{hits: make(map[string]int)}
	n.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		n.hits[r.URL.Path]++
		n.mu.Unlock()

		if h, ok := routes[r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(n.srv.Close)
	return n
}

func (n *node) count(path string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hits[path]
}

func (n *node) url() string { return n.srv.URL }

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func fail(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}
}

func deps(supervisor string, peers ...scenario.Peer) scenario.Deps {
	return scenario.Deps{
		Client:     client.New(),
		Generator:  sensor.NewGenerator(sensor.WithRand(rand.New(rand.NewSource(7)))),
		Supervisor: supervisor,
		Peers:      peers,
		Rand:       rand.New(rand.NewSource(42)),
	}
}

// scriptedCPU returns values from a fixed cycle, one per call.
type scriptedCPU struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func (s *scriptedCPU) CPUPercent(context.Context) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

type fixedLoad struct{ cpu, mem float64 }

func (f fixedLoad) Load(context.Context) (float64, float64) { return f.cpu, f.mem }
