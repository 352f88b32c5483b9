package repositories

import (
	"context"
	"encoding/json"
	"fmt"
)

// collection binds one store collection to a Go type.
type collection[T any] struct {
	store Store
	name  string
}

func newCollection[T any](store Store, name string) collection[T] {
	return collection[T]{store: store, name: name}
}

func (c collection[T]) save(ctx context.Context, id string, value *T) error {
	return c.store.SaveItem(ctx, c.name, id, value)
}

// find returns nil, nil when the item does not exist.
func (c collection[T]) find(ctx context.Context, id string) (*T, error) {
	var value T
	found, err := c.store.GetItem(ctx, c.name, id, &value)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &value, nil
}

func (c collection[T]) all(ctx context.Context) ([]T, error) {
	raw, err := c.store.GetAllItems(ctx, c.name)
	if err != nil {
		return nil, err
	}

	values := make([]T, 0, len(raw))
	for i, item := range raw {
		var value T
		if err := json.Unmarshal(item, &value); err != nil {
			return nil, fmt.Errorf("failed to decode %s item %d: %w", c.name, i, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func (c collection[T]) delete(ctx context.Context, id string) (bool, error) {
	return c.store.DeleteItem(ctx, c.name, id)
}

func (c collection[T]) clear(ctx context.Context) error {
	return c.store.ClearStore(ctx, c.name)
}
