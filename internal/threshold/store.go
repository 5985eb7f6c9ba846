package threshold

import (
	"context"
	"log"
	"math"
	"sync"

	"NetSentry/internal/model"
)

// DefaultValue is the detection threshold a fresh store starts with.
const DefaultValue = 0.75

// Snapshotter optionally makes the threshold durable across restarts. The
// in-memory value remains authoritative; snapshot failures are logged and
// never fail a Set.
type Snapshotter interface {
	// Load returns the persisted threshold and whether one was present.
	Load(ctx context.Context) (float64, bool, error)

	// Save persists the threshold.
	Save(ctx context.Context, value float64) error
}

// Store holds the process-wide mutable detection threshold. Get and Set are
// safe for concurrent use from any number of scoring requests; a reader always
// observes a fully written value. Writes are last-writer-wins.
type Store struct {
	mu    sync.RWMutex
	value float64
	snap  Snapshotter
}

// NewStore creates a store seeded with the given default. Values outside
// [0,1] fall back to DefaultValue.
func NewStore(def float64) *Store {
	if def < 0 || def > 1 || math.IsNaN(def) {
		def = DefaultValue
	}
	return &Store{value: def}
}

// WithSnapshotter attaches durable persistence and, if a snapshot exists,
// restores the threshold from it.
func (s *Store) WithSnapshotter(ctx context.Context, snap Snapshotter) *Store {
	s.snap = snap
	value, ok, err := snap.Load(ctx)
	if err != nil {
		log.Printf("Failed to load threshold snapshot, keeping %.2f: %v", s.Get(), err)
		return s
	}
	if ok {
		if err := s.Set(ctx, value); err != nil {
			log.Printf("Ignoring out-of-range threshold snapshot %v: %v", value, err)
		} else {
			log.Printf("Restored detection threshold %.2f from snapshot", value)
		}
	}
	return s
}

// Get returns the current detection threshold.
func (s *Store) Get() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set validates and updates the threshold. On a validation error the prior
// value is retained unchanged.
func (s *Store) Set(ctx context.Context, value float64) error {
	if value < 0 || value > 1 || math.IsNaN(value) {
		return model.ErrThresholdOutOfRange
	}

	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	if s.snap != nil {
		if err := s.snap.Save(ctx, value); err != nil {
			log.Printf("Failed to snapshot detection threshold %.2f: %v", value, err)
		}
	}
	return nil
}
