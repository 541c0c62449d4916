package services

import (
	"testing"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFlujo_GetStepData(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo())

	faceID := testutil.CreateTestFaceID(flujo.ID)
	contact := testutil.CreateTestContactInfo(flujo.ID)
	signature := testutil.CreateTestSignature(flujo.ID)

	require.NoError(t, env.persistence.FaceIDRepository().Save(t.Context(), faceID))
	require.NoError(t, env.persistence.ContactInfoRepository().Save(t.Context(), contact))
	require.NoError(t, env.persistence.SignatureRepository().Save(t.Context(), signature))

	env.objects.On("DownloadURL", mock.Anything, faceID.File.ObjectKey).Return("https://bucket.example/face", nil)
	env.objects.On("DownloadURL", mock.Anything, signature.ObjectKey).Return("https://bucket.example/signature", nil)

	face, err := env.flujos.GetStepData(t.Context(), flujo.ID, models.StepFace)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/face", face.DownloadURL)
	assert.Equal(t, faceID.Public(), face.Data)

	info, err := env.flujos.GetStepData(t.Context(), flujo.ID, models.StepContactInfo)
	require.NoError(t, err)
	assert.Empty(t, info.DownloadURL)
	assert.Equal(t, contact.Public(), info.Data)

	sig, err := env.flujos.GetStepData(t.Context(), flujo.ID, models.StepSignature)
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.example/signature", sig.DownloadURL)
	assert.Equal(t, signature.Public(), sig.Data)

	env.objects.AssertExpectations(t)
}

func TestFlujo_GetStepDataMissing(t *testing.T) {
	env := newTestEnv(t)
	flujo := env.save(t, testutil.CreateTestFlujo())

	_, err := env.flujos.GetStepData(t.Context(), flujo.ID, models.StepSignature)
	assertServiceError(t, err, ErrNotFound, CodeStepNotFound)

	_, err = env.flujos.GetStepData(t.Context(), "missing", models.StepContactInfo)
	assertServiceError(t, err, ErrNotFound, CodeFlujoNotFound)

	_, err = env.flujos.GetStepData(t.Context(), flujo.ID, "VOICE")
	assertServiceError(t, err, ErrInvalidRequest, CodeUnsupportedStepKind)

	env.objects.AssertNotCalled(t, "DownloadURL", mock.Anything, mock.Anything)
}
