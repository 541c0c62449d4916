package mocks

import (
	"context"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockFlujoRepository is a mock implementation of persistence.FlujoRepository interface.
type MockFlujoRepository struct {
	mock.Mock
}

func (m *MockFlujoRepository) Save(ctx context.Context, flujo *models.Flujo) error {
	args := m.Called(ctx, flujo)

	return args.Error(0)
}

func (m *MockFlujoRepository) GetByID(ctx context.Context, id string) (*models.Flujo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Flujo), args.Error(1)
}

func (m *MockFlujoRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

func (m *MockFlujoRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockFlujoRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Flujo, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Flujo), args.Error(1)
}

// MockStepRepository is a mock implementation of persistence.StepRepository interface.
type MockStepRepository[T models.Step] struct {
	mock.Mock
}

func (m *MockStepRepository[T]) Save(ctx context.Context, step T) error {
	args := m.Called(ctx, step)

	return args.Error(0)
}

func (m *MockStepRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	args := m.Called(ctx, id)

	return stepArg[T](args), args.Error(1)
}

func (m *MockStepRepository[T]) GetByFlujoID(ctx context.Context, flujoID string) (T, error) {
	args := m.Called(ctx, flujoID)

	return stepArg[T](args), args.Error(1)
}

func (m *MockStepRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

func (m *MockStepRepository[T]) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func stepArg[T models.Step](args mock.Arguments) T {
	step, _ := args.Get(0).(T)

	return step
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
// The repositories are plain fields so tests can set expectations on them.
type MockPersistence struct {
	mock.Mock

	Flujos       *MockFlujoRepository
	FaceIDs      *MockStepRepository[*models.FaceID]
	ContactInfos *MockStepRepository[*models.ContactInfo]
	Signatures   *MockStepRepository[*models.Signature]
}

// NewMockPersistence returns a MockPersistence with empty repository mocks.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		Flujos:       &MockFlujoRepository{},
		FaceIDs:      &MockStepRepository[*models.FaceID]{},
		ContactInfos: &MockStepRepository[*models.ContactInfo]{},
		Signatures:   &MockStepRepository[*models.Signature]{},
	}
}

func (m *MockPersistence) FlujoRepository() persistence.FlujoRepository {
	return m.Flujos
}

func (m *MockPersistence) FaceIDRepository() persistence.StepRepository[*models.FaceID] {
	return m.FaceIDs
}

func (m *MockPersistence) ContactInfoRepository() persistence.StepRepository[*models.ContactInfo] {
	return m.ContactInfos
}

func (m *MockPersistence) SignatureRepository() persistence.StepRepository[*models.Signature] {
	return m.Signatures
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
