package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dukex/flujo/pkg/mocks"
	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFlujo_Create(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.flujos.Create(t.Context(), CreateFlujoRequest{
		Types:          []models.StepType{models.StepContactInfo, models.StepSignature},
		Title:          "Onboarding",
		Description:    "Identity check",
		CompletionTime: "2h",
		Passcode:       "1234",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusCreated, created.Status)
	assert.Equal(t, testNow, created.CreatedAt)
	assert.Nil(t, created.StartTime)
	assert.Empty(t, created.CompletedSteps)
	assert.True(t, created.NeedsPasscode())

	testutil.AssertFlujoEqual(t, created, env.stored(t, created.ID))
}

func TestFlujo_CreateValidation(t *testing.T) {
	valid := func() CreateFlujoRequest {
		return CreateFlujoRequest{
			Types:          []models.StepType{models.StepFace},
			Title:          "Onboarding",
			CompletionTime: "30m",
		}
	}

	tests := []struct {
		name   string
		modify func(*CreateFlujoRequest)
		code   string
	}{
		{"no types", func(r *CreateFlujoRequest) { r.Types = nil }, CodeValidationFailed},
		{"duplicate types", func(r *CreateFlujoRequest) {
			r.Types = []models.StepType{models.StepFace, models.StepFace}
		}, CodeValidationFailed},
		{"unknown type", func(r *CreateFlujoRequest) { r.Types = []models.StepType{"VOICE"} }, CodeValidationFailed},
		{"empty title", func(r *CreateFlujoRequest) { r.Title = "" }, CodeValidationFailed},
		{"missing completion time", func(r *CreateFlujoRequest) { r.CompletionTime = "" }, CodeValidationFailed},
		{"seconds unit", func(r *CreateFlujoRequest) { r.CompletionTime = "90s" }, CodeInvalidCompletion},
		{"zero amount", func(r *CreateFlujoRequest) { r.CompletionTime = "0h" }, CodeInvalidCompletion},
		{"days unit", func(r *CreateFlujoRequest) { r.CompletionTime = "1d" }, CodeInvalidCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := valid()
			tt.modify(&req)

			created, err := env.flujos.Create(t.Context(), req)
			assertServiceError(t, err, ErrInvalidRequest, tt.code)
			assert.Nil(t, created)

			listed, err := env.flujos.List(t.Context(), 0)
			require.NoError(t, err)
			assert.Empty(t, listed.Results)
		})
	}
}

func TestFlujo_CreatePropagatesStoreFailure(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.Flujos.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	service := NewFlujo(p, &mocks.MockObjectStore{}, nil)

	_, err := service.Create(t.Context(), CreateFlujoRequest{
		Types:          []models.StepType{models.StepFace},
		Title:          "Onboarding",
		CompletionTime: "1h",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, ErrorCode(err))
	p.Flujos.AssertExpectations(t)
}

func TestFlujo_FetchByID(t *testing.T) {
	t.Run("missing flujo", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.flujos.FetchByID(t.Context(), "missing")
		assertServiceError(t, err, ErrNotFound, CodeFlujoNotFound)
	})

	t.Run("started within deadline stays started", func(t *testing.T) {
		env := newTestEnv(t)
		flujo, _ := env.started(t)

		env.advance(59 * time.Minute)

		fetched, err := env.flujos.FetchByID(t.Context(), flujo.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusStarted, fetched.Status)
	})

	t.Run("started past deadline is locked and persisted", func(t *testing.T) {
		env := newTestEnv(t)
		flujo, _ := env.started(t)

		env.advance(time.Hour)

		fetched, err := env.flujos.FetchByID(t.Context(), flujo.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLocked, fetched.Status)
		assert.Equal(t, models.StatusLocked, env.stored(t, flujo.ID).Status)
	})

	t.Run("created flujo never expires", func(t *testing.T) {
		env := newTestEnv(t)
		flujo := env.save(t, testutil.CreateTestFlujo())

		env.advance(48 * time.Hour)

		fetched, err := env.flujos.FetchByID(t.Context(), flujo.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCreated, fetched.Status)
	})
}

func TestFlujo_Start(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo())

	result, err := env.flujos.Start(t.Context(), flujo.ID, "")
	require.NoError(t, err)

	assert.Equal(t, int64(3600), result.SecondsLeft)
	assert.Equal(t, models.StatusStarted, result.Flujo.Status)
	require.NotNil(t, result.Flujo.StartTime)
	assert.Equal(t, testNow, *result.Flujo.StartTime)

	payload, ok := env.codec.Verify(result.Token)
	require.True(t, ok)
	assert.Equal(t, flujo.ID, payload.FlujoID)

	stored := env.stored(t, flujo.ID)
	assert.Equal(t, models.StatusStarted, stored.Status)
	assert.Equal(t, testNow, *stored.StartTime)

	env.advance(time.Hour)

	_, ok = env.codec.Verify(result.Token)
	assert.False(t, ok, "token expires with the flujo deadline")
}

func TestFlujo_StartAgainReissuesToken(t *testing.T) {
	env := newTestEnv(t)
	flujo, first := env.started(t)

	env.advance(10*time.Minute + 500*time.Millisecond)

	result, err := env.flujos.Start(t.Context(), flujo.ID, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2999), result.SecondsLeft)
	assert.NotEqual(t, first, result.Token)
	assert.Equal(t, testNow, *result.Flujo.StartTime)
	assert.Equal(t, testNow, *env.stored(t, flujo.ID).StartTime)
}

func TestFlujo_StartPastDeadline(t *testing.T) {
	env := newTestEnv(t)
	flujo, _ := env.started(t, testutil.WithCompletionTime("1m"))

	env.advance(59*time.Second + 200*time.Millisecond)

	_, err := env.flujos.Start(t.Context(), flujo.ID, "")
	assertServiceError(t, err, ErrConflict, CodeDeadlinePassed)
	assert.Equal(t, models.StatusLocked, env.stored(t, flujo.ID).Status)

	fetched, err := env.flujos.FetchByID(t.Context(), flujo.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLocked, fetched.Status)
}

func TestFlujo_StartClosed(t *testing.T) {
	for _, status := range []models.Status{models.StatusFinished, models.StatusLocked} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			flujo := env.save(t, testutil.CreateTestFlujo(testutil.WithStarted(testNow), testutil.WithStatus(status)))

			_, err := env.flujos.Start(t.Context(), flujo.ID, "")
			assertServiceError(t, err, ErrConflict, CodeFlujoClosed)
			assert.Equal(t, status, env.stored(t, flujo.ID).Status)
		})
	}
}

func TestFlujo_StartMissing(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.flujos.Start(t.Context(), "missing", "")
	assertServiceError(t, err, ErrNotFound, CodeFlujoNotFound)
}

func TestFlujo_StartPasscode(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo(testutil.WithPasscode("s3cret")))

	for _, passcode := range []string{"", "S3CRET", "s3cret "} {
		_, err := env.flujos.Start(t.Context(), flujo.ID, passcode)
		assertServiceError(t, err, ErrUnauthorized, CodeWrongPasscode)
	}

	assert.Equal(t, models.StatusCreated, env.stored(t, flujo.ID).Status)

	result, err := env.flujos.Start(t.Context(), flujo.ID, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarted, result.Flujo.Status)
}

func TestFlujo_Update(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo(testutil.WithStarted(testNow), testutil.WithStatus(models.StatusLocked)))

	updated, err := env.flujos.Update(t.Context(), flujo.ID, UpdateFlujoRequest{Title: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, flujo.Description, updated.Description)
	assert.Equal(t, models.StatusLocked, updated.Status)

	description := "New description"
	updated, err = env.flujos.Update(t.Context(), flujo.ID, UpdateFlujoRequest{Title: "Again", Description: &description})
	require.NoError(t, err)
	assert.Equal(t, description, updated.Description)

	testutil.AssertFlujoEqual(t, updated, env.stored(t, flujo.ID))

	_, err = env.flujos.Update(t.Context(), flujo.ID, UpdateFlujoRequest{})
	assertServiceError(t, err, ErrInvalidRequest, CodeValidationFailed)

	_, err = env.flujos.Update(t.Context(), "missing", UpdateFlujoRequest{Title: "x"})
	assertServiceError(t, err, ErrNotFound, CodeFlujoNotFound)
}

func TestFlujo_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo())

	faceID := testutil.CreateTestFaceID(flujo.ID)
	contact := testutil.CreateTestContactInfo(flujo.ID)
	signature := testutil.CreateTestSignature(flujo.ID)

	require.NoError(t, env.persistence.FaceIDRepository().Save(t.Context(), faceID))
	require.NoError(t, env.persistence.ContactInfoRepository().Save(t.Context(), contact))
	require.NoError(t, env.persistence.SignatureRepository().Save(t.Context(), signature))

	env.objects.On("Delete", mock.Anything, faceID.File.ObjectKey).Return(nil).Once()
	env.objects.On("Delete", mock.Anything, signature.ObjectKey).Return(nil).Once()

	require.NoError(t, env.flujos.Delete(t.Context(), flujo.ID))
	env.objects.AssertExpectations(t)

	exists, err := env.persistence.FlujoRepository().Exists(t.Context(), flujo.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	for name, check := range map[string]func() (bool, error){
		"face id":      func() (bool, error) { return env.persistence.FaceIDRepository().Exists(t.Context(), faceID.ID) },
		"contact info": func() (bool, error) { return env.persistence.ContactInfoRepository().Exists(t.Context(), contact.ID) },
		"signature":    func() (bool, error) { return env.persistence.SignatureRepository().Exists(t.Context(), signature.ID) },
	} {
		exists, err := check()
		require.NoError(t, err, name)
		assert.False(t, exists, name)
	}

	require.NoError(t, env.flujos.Delete(t.Context(), flujo.ID), "delete is idempotent")
}

func TestFlujo_DeleteKeepsFlujoWhenCascadeFails(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo())

	signature := testutil.CreateTestSignature(flujo.ID)
	require.NoError(t, env.persistence.SignatureRepository().Save(t.Context(), signature))

	env.objects.On("Delete", mock.Anything, signature.ObjectKey).Return(errors.New("bucket unavailable"))

	err := env.flujos.Delete(t.Context(), flujo.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")

	env.stored(t, flujo.ID)
}

func TestFlujo_List(t *testing.T) {
	env := newTestEnv(t)

	for i := range 25 {
		env.save(t, testutil.CreateTestFlujo(
			testutil.WithCreatedAt(testNow.Add(time.Duration(i)*time.Minute)),
			testutil.WithPasscode(fmt.Sprintf("code-%d", i)),
			func(f *models.Flujo) { f.ID = fmt.Sprintf("flujo-%02d", i) },
		))
	}

	first, err := env.flujos.List(t.Context(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Page)
	assert.Equal(t, PageSize, first.PageSize)
	require.Len(t, first.Results, PageSize)
	assert.Equal(t, "flujo-24", first.Results[0].ID)
	assert.Equal(t, "flujo-05", first.Results[19].ID)
	assert.True(t, first.Results[0].NeedsPasscode)

	second, err := env.flujos.List(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, second.Results, 5)
	assert.Equal(t, "flujo-04", second.Results[0].ID)
	assert.Equal(t, "flujo-00", second.Results[4].ID)

	beyond, err := env.flujos.List(t.Context(), 7)
	require.NoError(t, err)
	assert.Empty(t, beyond.Results)

	negative, err := env.flujos.List(t.Context(), -3)
	require.NoError(t, err)
	assert.Equal(t, 0, negative.Page)
	assert.Equal(t, first.Results, negative.Results)
}

func TestFlujo_FetchByIDMapsStoreErrors(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.Flujos.On("GetByID", mock.Anything, "gone").
		Return(nil, persistence.NewFlujoError("GetByID", "gone", persistence.ErrFlujoNotFound))
	p.Flujos.On("GetByID", mock.Anything, "broken").
		Return(nil, persistence.NewFlujoError("GetByID", "broken", errors.New("connection reset")))

	service := NewFlujo(p, nil, nil)

	_, err := service.FetchByID(t.Context(), "gone")
	assertServiceError(t, err, ErrNotFound, CodeFlujoNotFound)

	_, err = service.FetchByID(t.Context(), "broken")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "connection reset")
	p.Flujos.AssertExpectations(t)
}

func TestFlujo_DeleteSkipsMissingSteps(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.FaceIDs.On("GetByFlujoID", mock.Anything, "flujo-1").
		Return(nil, persistence.NewStepError("GetByFlujoID", "FACE", "flujo-1", persistence.ErrStepNotFound))
	p.ContactInfos.On("GetByFlujoID", mock.Anything, "flujo-1").
		Return(nil, persistence.NewStepError("GetByFlujoID", "CONTACT_INFO", "flujo-1", persistence.ErrStepNotFound))
	p.Signatures.On("GetByFlujoID", mock.Anything, "flujo-1").
		Return(nil, persistence.NewStepError("GetByFlujoID", "SIGNATURE", "flujo-1", persistence.ErrStepNotFound))
	p.Flujos.On("Delete", mock.Anything, "flujo-1").Return(nil)

	require.NoError(t, NewFlujo(p, &mocks.MockObjectStore{}, nil).Delete(t.Context(), "flujo-1"))

	p.Flujos.AssertExpectations(t)
	p.FaceIDs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	p.ContactInfos.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	p.Signatures.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFlujo_DeleteStopsOnStepLookupFailure(t *testing.T) {
	p := mocks.NewMockPersistence()
	missing := persistence.NewStepError("GetByFlujoID", "FACE", "flujo-1", persistence.ErrStepNotFound)
	p.FaceIDs.On("GetByFlujoID", mock.Anything, "flujo-1").Return(nil, missing)
	p.ContactInfos.On("GetByFlujoID", mock.Anything, "flujo-1").Return(nil, errors.New("connection reset"))
	p.Signatures.On("GetByFlujoID", mock.Anything, "flujo-1").
		Return(nil, persistence.NewStepError("GetByFlujoID", "SIGNATURE", "flujo-1", persistence.ErrStepNotFound))

	err := NewFlujo(p, &mocks.MockObjectStore{}, nil).Delete(t.Context(), "flujo-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	p.Flujos.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestFlujo_ListUsesFixedPage(t *testing.T) {
	p := mocks.NewMockPersistence()
	p.Flujos.On("List", mock.Anything, persistence.ListOptions{Offset: 40, Limit: 20}).Return([]*models.Flujo{}, nil)

	result, err := NewFlujo(p, nil, nil).List(t.Context(), 2)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	p.Flujos.AssertExpectations(t)
}

func TestFlujo_HealthCheck(t *testing.T) {
	env := newTestEnv(t)
	env.objects.On("HealthCheck", mock.Anything).Return(nil).Once()

	message, healthy := env.flujos.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.Equal(t, "Persistence layer is healthy", message)

	env.objects.On("HealthCheck", mock.Anything).Return(errors.New("access denied")).Once()

	message, healthy = env.flujos.HealthCheck(t.Context())
	assert.False(t, healthy)
	assert.Contains(t, message, "access denied")

	_, healthy = NewFlujo(nil, nil, nil).HealthCheck(t.Context())
	assert.False(t, healthy)
}
