package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"zazoom-be/internal/logger"
	"zazoom-be/internal/metrics"

	"go.uber.org/zap"
)

// Store is one profile's cart. Every mutation is all-or-nothing: the new
// state only becomes visible once it has been written to storage.
type Store struct {
	mu      sync.Mutex
	key     string
	storage Storage
	state   State
}

// Open rehydrates the cart for profileID. Unreadable persisted data is
// discarded and the cart starts empty.
func Open(ctx context.Context, storage Storage, profileID string) (*Store, error) {
	if strings.TrimSpace(profileID) == "" {
		return nil, ErrInvalidProfile
	}

	s := &Store{
		key:     storageKey(profileID),
		storage: storage,
		state:   State{Lines: []Line{}},
	}

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cart"),
		zap.String("method", "Open"),
		zap.String("key", s.key),
	)

	data, err := storage.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return s, nil
	}
	if err != nil {
		log.Error("failed to read persisted cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedLoad, err)
	}

	state, err := decodeState(data)
	if err != nil {
		log.Warn("discarding corrupt cart", zap.Error(err))
		if delErr := storage.Delete(ctx, s.key); delErr != nil {
			log.Error("failed to delete corrupt cart", zap.Error(delErr))
		}
		return s, nil
	}

	s.state = state
	return s, nil
}

// State returns a copy of the current cart.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Copy()
}

// AddItem adds one unit of item. A product already in the cart keeps the
// name and price it was first added with.
func (s *Store) AddItem(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Name) == "" || item.Price.IsNegative() {
		logger.FromCtx(ctx).Warn("rejected cart item",
			zap.String("layer", "cart"),
			zap.String("product_id", item.ID),
		)
		return ErrInvalidItem
	}

	return s.apply(ctx, "AddItem", func(lines []Line) ([]Line, error) {
		if i := indexOf(lines, item.ID); i != -1 {
			lines[i].Quantity++
			return lines, nil
		}
		return append(lines, Line{
			ProductID: item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  1,
			Image:     item.Image,
		}), nil
	})
}

// RemoveItem drops the line for productID. Unknown ids are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return ErrInvalidItemID
	}

	return s.apply(ctx, "RemoveItem", func(lines []Line) ([]Line, error) {
		if i := indexOf(lines, productID); i != -1 {
			lines = append(lines[:i], lines[i+1:]...)
		}
		return lines, nil
	})
}

// UpdateQuantity sets the quantity of productID exactly. Zero removes the
// line; negative quantities are rejected.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return ErrInvalidItemID
	}
	if quantity < 0 {
		logger.FromCtx(ctx).Warn("rejected negative quantity",
			zap.String("layer", "cart"),
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
		)
		return ErrNegativeQuantity
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, productID)
	}

	return s.apply(ctx, "UpdateQuantity", func(lines []Line) ([]Line, error) {
		if i := indexOf(lines, productID); i != -1 {
			lines[i].Quantity = quantity
		}
		return lines, nil
	})
}

// Clear empties the cart and removes its persisted copy.
func (s *Store) Clear(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.CartMutations.WithLabelValues("Clear", metrics.Outcome(err)).Inc() }()

	if err := s.storage.Delete(ctx, s.key); err != nil {
		logger.FromCtx(ctx).Error("failed to clear cart",
			zap.String("layer", "cart"),
			zap.String("key", s.key),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrFailedPersist, err)
	}

	s.state = State{Lines: []Line{}, Total: computeTotal(nil)}
	return nil
}

func (s *Store) apply(ctx context.Context, method string, mutate func([]Line) ([]Line, error)) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.CartMutations.WithLabelValues(method, metrics.Outcome(err)).Inc() }()

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "cart"),
		zap.String("method", method),
		zap.String("key", s.key),
	)

	next := s.state.Copy()
	lines, err := mutate(next.Lines)
	if err != nil {
		log.Warn("cart mutation rejected", zap.Error(err))
		return err
	}
	next = State{Lines: lines, Total: computeTotal(lines)}

	data, err := json.Marshal(next)
	if err != nil {
		log.Error("failed to encode cart", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedPersist, err)
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		log.Error("failed to persist cart", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedPersist, err)
	}

	s.state = next
	log.Debug("cart updated",
		zap.Int("lines", len(next.Lines)),
		zap.String("total", next.Total.String()),
	)
	return nil
}

// decodeState parses a persisted blob and re-derives the total, so a
// tampered total never survives a reload.
func decodeState(data []byte) (State, error) {
	var raw State
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrCorruptCartState, err)
	}
	if raw.Lines == nil {
		return State{}, fmt.Errorf("%w: missing items", ErrCorruptCartState)
	}

	seen := make(map[string]bool, len(raw.Lines))
	for _, l := range raw.Lines {
		if l.ProductID == "" || l.Name == "" || l.Quantity < 1 || l.UnitPrice.IsNegative() || seen[l.ProductID] {
			return State{}, fmt.Errorf("%w: invalid line %q", ErrCorruptCartState, l.ProductID)
		}
		seen[l.ProductID] = true
	}

	return State{Lines: raw.Lines, Total: computeTotal(raw.Lines)}, nil
}
