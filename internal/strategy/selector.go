// Package strategy maps a detected emotion label to coping strategies.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"mindpal/internal/domain"
)

// Selector returns the catalog strategies linked to an emotion label,
// ordered by name. An unknown label yields an empty list, not an error.
type Selector interface {
	ForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error)
}

// Store is the persistence query behind StoreSelector.
type Store interface {
	StrategiesForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error)
}

type StoreSelector struct {
	store Store
}

func NewStoreSelector(store Store) *StoreSelector {
	return &StoreSelector{store: store}
}

func (s *StoreSelector) ForEmotion(ctx context.Context, label string) ([]domain.CopingStrategy, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, nil
	}
	out, err := s.store.StrategiesForEmotion(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("strategies for %q: %w", label, err)
	}
	return out, nil
}
