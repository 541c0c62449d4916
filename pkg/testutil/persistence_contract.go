package testutil

import (
	"testing"
	"time"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPersistenceContract exercises the behaviour every persistence backend must
// share. newPersistence is called once per subtest and must return an empty store.
func RunPersistenceContract(t *testing.T, newPersistence func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("flujo save and get round trip", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.FlujoRepository()

		started := time.Date(2024, time.April, 19, 13, 0, 0, 0, time.UTC)
		flujo := CreateTestFlujo(WithPasscode("1234"), WithStarted(started), WithCompletedSteps(models.StepFace))

		require.NoError(t, repo.Save(t.Context(), flujo))

		got, err := repo.GetByID(t.Context(), flujo.ID)
		require.NoError(t, err)
		AssertFlujoEqual(t, flujo, got)

		exists, err := repo.Exists(t.Context(), flujo.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("flujo save replaces the document", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.FlujoRepository()

		flujo := CreateTestFlujo()
		require.NoError(t, repo.Save(t.Context(), flujo))

		flujo.Title = "Renamed"
		flujo.Status = models.StatusLocked
		require.NoError(t, repo.Save(t.Context(), flujo))

		got, err := repo.GetByID(t.Context(), flujo.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, models.StatusLocked, got.Status)

		all, err := repo.List(t.Context(), persistence.ListOptions{Limit: 20})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("missing flujo reports not found", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.FlujoRepository()

		got, err := repo.GetByID(t.Context(), "missing")
		require.Error(t, err)
		assert.True(t, persistence.IsFlujoNotFound(err))
		assert.Nil(t, got)

		exists, err := repo.Exists(t.Context(), "missing")
		require.NoError(t, err)
		assert.False(t, exists)

		assert.NoError(t, repo.Delete(t.Context(), "missing"))
	})

	t.Run("flujo delete", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.FlujoRepository()

		flujo := CreateTestFlujo()
		require.NoError(t, repo.Save(t.Context(), flujo))
		require.NoError(t, repo.Delete(t.Context(), flujo.ID))

		_, err := repo.GetByID(t.Context(), flujo.ID)
		assert.True(t, persistence.IsFlujoNotFound(err))
	})

	t.Run("list is newest first and paginated", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.FlujoRepository()

		base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
		ids := make([]string, 0, 5)

		for i := range 5 {
			flujo := CreateTestFlujo(WithCreatedAt(base.Add(time.Duration(i) * time.Hour)))
			require.NoError(t, repo.Save(t.Context(), flujo))
			ids = append(ids, flujo.ID)
		}

		first, err := repo.List(t.Context(), persistence.ListOptions{Offset: 0, Limit: 2})
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, ids[4], first[0].ID)
		assert.Equal(t, ids[3], first[1].ID)

		last, err := repo.List(t.Context(), persistence.ListOptions{Offset: 4, Limit: 2})
		require.NoError(t, err)
		require.Len(t, last, 1)
		assert.Equal(t, ids[0], last[0].ID)

		beyond, err := repo.List(t.Context(), persistence.ListOptions{Offset: 10, Limit: 2})
		require.NoError(t, err)
		assert.Empty(t, beyond)
	})

	t.Run("face id records", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.FaceIDRepository()

		face := CreateTestFaceID("flujo-1")
		require.NoError(t, repo.Save(t.Context(), face))

		byID, err := repo.GetByID(t.Context(), face.ID)
		require.NoError(t, err)
		require.NotNil(t, byID)
		assert.Equal(t, face.File, byID.File)

		face.File.Status = models.FileStatusUploaded
		require.NoError(t, repo.Save(t.Context(), face))

		byFlujo, err := repo.GetByFlujoID(t.Context(), "flujo-1")
		require.NoError(t, err)
		require.NotNil(t, byFlujo)
		assert.Equal(t, face.ID, byFlujo.ID)
		assert.Equal(t, models.FileStatusUploaded, byFlujo.File.Status)

		_, err = repo.GetByFlujoID(t.Context(), "flujo-2")
		assert.True(t, persistence.IsStepNotFound(err))

		require.NoError(t, repo.Delete(t.Context(), face.ID))

		_, err = repo.GetByID(t.Context(), face.ID)
		assert.True(t, persistence.IsStepNotFound(err))

		exists, err := repo.Exists(t.Context(), face.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("contact info records", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.ContactInfoRepository()

		contact := CreateTestContactInfo("flujo-1")
		require.NoError(t, repo.Save(t.Context(), contact))

		got, err := repo.GetByFlujoID(t.Context(), "flujo-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, contact.ID, got.ID)
		assert.Equal(t, contact.FullName, got.FullName)
		assert.Equal(t, contact.Email, got.Email)
		assert.True(t, contact.CreatedAt.Equal(got.CreatedAt))

		exists, err := repo.Exists(t.Context(), contact.ID)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("one record per flujo and kind", func(t *testing.T) {
		p := newPersistence(t)
		repo := p.SignatureRepository()

		first := CreateTestSignature("flujo-1")
		require.NoError(t, repo.Save(t.Context(), first))

		second := CreateTestSignature("flujo-1")
		err := repo.Save(t.Context(), second)
		require.Error(t, err)
		assert.True(t, persistence.IsStepAlreadyExists(err))

		got, err := repo.GetByFlujoID(t.Context(), "flujo-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("kinds are stored independently", func(t *testing.T) {
		p := newPersistence(t)

		require.NoError(t, p.SignatureRepository().Save(t.Context(), CreateTestSignature("flujo-1")))

		_, err := p.FaceIDRepository().GetByFlujoID(t.Context(), "flujo-1")
		assert.True(t, persistence.IsStepNotFound(err))

		_, err = p.ContactInfoRepository().GetByFlujoID(t.Context(), "flujo-1")
		assert.True(t, persistence.IsStepNotFound(err))
	})

	t.Run("health check", func(t *testing.T) {
		p := newPersistence(t)

		assert.NoError(t, p.HealthCheck(t.Context()))
	})
}

// AssertFlujoEqual compares two flujos, treating times as instants.
func AssertFlujoEqual(t *testing.T, want, got *models.Flujo) {
	t.Helper()

	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Types, got.Types)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.CompletionTime, got.CompletionTime)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at: want %s got %s", want.CreatedAt, got.CreatedAt)
	assert.Equal(t, want.Status, got.Status)
	assert.ElementsMatch(t, want.CompletedSteps, got.CompletedSteps)
	assert.Equal(t, want.Passcode, got.Passcode)

	if want.StartTime == nil {
		assert.Nil(t, got.StartTime)
	} else if assert.NotNil(t, got.StartTime) {
		assert.True(t, want.StartTime.Equal(*got.StartTime), "start_time: want %s got %s", want.StartTime, got.StartTime)
	}
}
