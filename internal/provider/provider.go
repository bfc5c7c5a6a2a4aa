package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Observation is one raw {date, price} row as returned by a provider, before
// the pipeline normalizes it into the canonical series representation.
type Observation struct {
	Date  time.Time
	Price float64
}

// Provider fetches the full published history of one commodity price series
// from an external data source.
type Provider interface {
	Source() string
	Fetch(ctx context.Context) ([]Observation, error)
}

type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Source()] = p
}

func (r *Registry) Get(source string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[source]
	if !ok {
		return nil, fmt.Errorf("provider not found for source: %s", source)
	}
	return p, nil
}

func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]string, 0, len(r.providers))
	for src := range r.providers {
		sources = append(sources, src)
	}
	return sources
}
