package dietchart

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *DietChart) error
	GetByID(ctx context.Context, id uuid.UUID) (*DietChart, error)
	// Update writes c. A non-zero expectedVersion must match the stored
	// version or ErrConflict is returned; zero means last writer wins.
	Update(ctx context.Context, c *DietChart, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*DietChart, int, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]*DietChart, int, error)
}
