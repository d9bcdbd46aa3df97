package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/boris-companion/internal/weather"
)

var (
	// ErrNotFound is returned when no delivery is recorded for a given location.
	ErrNotFound = errors.New("no weather deliveries for location")
)

// DeliveryHistory holds deliveries for a location in arrival order.
type DeliveryHistory struct {
	Deliveries []weather.Delivery
}

// MemoryStore is a concurrency-safe in-memory history of forwarded weather messages.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*DeliveryHistory

	// retention configuration
	maxHistory int           // max number of deliveries per location
	maxAge     time.Duration // optional max age for deliveries

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return NewMemoryStoreWithClock(maxHistory, maxAge, clockwork.NewRealClock())
}

// NewMemoryStoreWithClock is NewMemoryStore with an explicit time source for age retention.
func NewMemoryStoreWithClock(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*DeliveryHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// SaveDelivery appends a delivery for its location and enforces retention.
// The latest delivery is always the last one saved, whatever its timestamp.
func (s *MemoryStore) SaveDelivery(d weather.Delivery) {
	key := d.Location.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &DeliveryHistory{}
		s.data[key] = history
	}

	history.Deliveries = append(history.Deliveries, d)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Deliveries) > s.maxHistory {
		over := len(history.Deliveries) - s.maxHistory
		history.Deliveries = history.Deliveries[over:]
	}

	// Enforce retention by age, always keeping the newest delivery.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		kept := history.Deliveries[:0]
		last := len(history.Deliveries) - 1
		for i, item := range history.Deliveries {
			if i == last || !item.SentAt.Before(cutoff) {
				kept = append(kept, item)
			}
		}
		history.Deliveries = kept
	}
}

// GetLatest returns the most recently saved delivery for a location.
func (s *MemoryStore) GetLatest(loc weather.Location) (weather.Delivery, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Deliveries) == 0 {
		return weather.Delivery{}, ErrNotFound
	}
	return history.Deliveries[len(history.Deliveries)-1], nil
}

// GetRange returns all deliveries for a location sent between from and to (inclusive).
func (s *MemoryStore) GetRange(loc weather.Location, from, to time.Time) ([]weather.Delivery, error) {
	key := loc.Key()

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Deliveries) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Delivery
	for _, d := range history.Deliveries {
		if !d.SentAt.Before(from) && !d.SentAt.After(to) {
			result = append(result, d)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
