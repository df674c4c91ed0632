package cart

import (
	"errors"
	"sync"

	"github.com/fjod/table_order/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNegativePrice = errors.New("menu item has a negative price")
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)

// Listener receives the cart state produced by a mutation.
// Listeners run synchronously on the mutating goroutine and must not mutate the store.
type Listener func(domain.Cart)

// Store owns the cart of one table session.
// Mutations always apply to the current state under the store mutex,
// so concurrent callers never work on a stale copy.
type Store struct {
	mu      sync.RWMutex
	items   []domain.LineItem
	version uint64

	notifyMu  sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64
	delivered uint64
}

func NewStore() *Store {
	return &Store{
		listeners: make(map[uint64]Listener),
	}
}

// Add merges quantity into the line for item, creating the line when absent.
// A quantity below 1 adds a single unit. Items with a negative price are rejected.
func (s *Store) Add(item domain.MenuItem, quantity int) error {
	return s.AddUpTo(item, quantity, 0)
}

// AddUpTo is Add with the resulting line quantity capped at limit; limit <= 0 means no cap.
// The check and the merge happen atomically, so concurrent adds cannot overshoot the cap.
func (s *Store) AddUpTo(item domain.MenuItem, quantity, limit int) error {
	if item.Price.IsNegative() {
		return ErrNegativePrice
	}
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	i := s.indexOf(item.ID)
	current := 0
	if i >= 0 {
		current = s.items[i].Quantity
	}
	if limit > 0 && current+quantity > limit {
		s.mu.Unlock()
		return ErrQuantityLimit
	}
	if i >= 0 {
		s.items[i].Quantity += quantity
	} else {
		s.items = append(s.items, domain.LineItem{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  quantity,
		})
	}
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
	return nil
}

// Remove deletes the line for itemID. Removing an absent item is a no-op.
func (s *Store) Remove(itemID int64) {
	s.mu.Lock()
	i := s.indexOf(itemID)
	if i < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
}

// UpdateQuantity sets the absolute quantity of itemID; quantity <= 0 removes the line.
func (s *Store) UpdateQuantity(itemID int64, quantity int) {
	if quantity <= 0 {
		s.Remove(itemID)
		return
	}

	s.mu.Lock()
	i := s.indexOf(itemID)
	if i < 0 || s.items[i].Quantity == quantity {
		s.mu.Unlock()
		return
	}
	s.items[i].Quantity = quantity
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
}

// UpdateSpecialInstructions sets or, with an empty text, clears the instructions of itemID.
func (s *Store) UpdateSpecialInstructions(itemID int64, text string) {
	s.mu.Lock()
	i := s.indexOf(itemID)
	if i < 0 || s.items[i].SpecialInstructions == text {
		s.mu.Unlock()
		return
	}
	s.items[i].SpecialInstructions = text
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	snapshot := s.commitLocked()
	s.mu.Unlock()

	s.publish(snapshot)
}

// Total returns the rounded cart total.
func (s *Store) Total() decimal.Decimal {
	return s.Snapshot().Total()
}

// Snapshot returns a deep copy of the current cart.
func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Quantity returns the quantity of itemID in the cart, 0 when absent.
func (s *Store) Quantity(itemID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(itemID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers l for every subsequent mutation and returns a function that unregisters it.
func (s *Store) Subscribe(l Listener) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = l

	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) indexOf(itemID int64) int {
	for i := range s.items {
		if s.items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

func (s *Store) commitLocked() domain.Cart {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.Cart {
	return domain.Cart{Items: s.items, Version: s.version}.Clone()
}

// publish delivers snapshot unless a newer version has already been delivered,
// which keeps every listener's view monotonic under concurrent mutations.
func (s *Store) publish(snapshot domain.Cart) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if snapshot.Version <= s.delivered {
		return
	}
	s.delivered = snapshot.Version
	for _, l := range s.listeners {
		l(snapshot)
	}
}
