// Package persistence provides the storage abstraction for flujos and their step records.
package persistence

import (
	"context"

	"github.com/dukex/flujo/pkg/models"
)

// Persistence groups the repositories of one storage backend.
type Persistence interface {
	FlujoRepository() FlujoRepository
	FaceIDRepository() StepRepository[*models.FaceID]
	ContactInfoRepository() StepRepository[*models.ContactInfo]
	SignatureRepository() StepRepository[*models.Signature]

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListOptions selects one page of flujos ordered by creation time, newest first.
type ListOptions struct {
	Offset int
	Limit  int
}

// FlujoRepository stores flujos. GetByID of a missing flujo fails with
// ErrFlujoNotFound and Delete of a missing flujo succeeds.
type FlujoRepository interface {
	Save(ctx context.Context, flujo *models.Flujo) error
	GetByID(ctx context.Context, id string) (*models.Flujo, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOptions) ([]*models.Flujo, error)
}

// StepRepository stores the records of one step kind, at most one per flujo.
// Lookups of missing records fail with ErrStepNotFound.
type StepRepository[T models.Step] interface {
	Save(ctx context.Context, step T) error
	GetByID(ctx context.Context, id string) (T, error)
	GetByFlujoID(ctx context.Context, flujoID string) (T, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}
