package catalog

import (
	"context"

	"github.com/google/uuid"
)

type FoodRepository interface {
	Create(ctx context.Context, f *FoodItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*FoodItem, error)
	Update(ctx context.Context, f *FoodItem) error
	// UpsertByName inserts f or overwrites the food with the same
	// case-insensitive name, reporting whether a row was created.
	UpsertByName(ctx context.Context, f *FoodItem) (created bool, err error)
	// ListAll returns the whole catalog in insertion order.
	ListAll(ctx context.Context) ([]*FoodItem, error)
}
