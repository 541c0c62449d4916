package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsClosed(t *testing.T) {
	assert.False(t, StatusCreated.IsClosed())
	assert.False(t, StatusStarted.IsClosed())
	assert.True(t, StatusFinished.IsClosed())
	assert.True(t, StatusLocked.IsClosed())
}

func TestStepType_Valid(t *testing.T) {
	for _, step := range StepTypes {
		assert.True(t, step.Valid(), step)
	}

	assert.False(t, StepType("face").Valid())
	assert.False(t, StepType("").Valid())
}

func TestFlujo_MarkStepCompleted_IsSetUnion(t *testing.T) {
	flujo := &Flujo{Types: []StepType{StepFace, StepSignature}}

	flujo.MarkStepCompleted(StepSignature)
	flujo.MarkStepCompleted(StepSignature)

	assert.Equal(t, []StepType{StepSignature}, flujo.CompletedSteps)
	assert.False(t, flujo.AllStepsCompleted())

	flujo.MarkStepCompleted(StepFace)

	assert.True(t, flujo.AllStepsCompleted())
	assert.True(t, flujo.IsStepCompleted(StepFace))
	assert.False(t, flujo.Requires(StepContactInfo))
}

func TestFlujo_Public_HidesPasscode(t *testing.T) {
	start := time.Date(2024, time.April, 19, 13, 0, 0, 0, time.UTC)
	flujo := &Flujo{
		ID:             "f-1",
		Types:          []StepType{StepContactInfo},
		Title:          "Onboarding",
		CompletionTime: "1h",
		StartTime:      &start,
		Status:         StatusStarted,
		Passcode:       "secret",
	}

	public := flujo.Public()
	assert.True(t, public.NeedsPasscode)
	assert.Equal(t, []StepType{}, public.CompletedSteps)

	body, err := json.Marshal(public)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "secret")
	assert.NotContains(t, string(body), `"passcode"`)
	assert.Contains(t, string(body), `"needs_passcode":true`)

	flujo.Passcode = ""
	assert.False(t, flujo.Public().NeedsPasscode)
}

func TestFlujo_Public_IsACopy(t *testing.T) {
	flujo := &Flujo{Types: []StepType{StepFace}, CompletedSteps: []StepType{StepFace}}

	public := flujo.Public()
	public.Types[0] = StepSignature
	public.CompletedSteps[0] = StepSignature

	assert.Equal(t, StepFace, flujo.Types[0])
	assert.Equal(t, StepFace, flujo.CompletedSteps[0])
}

func TestSteps_NilSafeAccessors(t *testing.T) {
	var (
		face      *FaceID
		contact   *ContactInfo
		signature *Signature
	)

	assert.Empty(t, face.StepID())
	assert.Empty(t, face.StepObjectKey())
	assert.Empty(t, contact.StepFlujoID())
	assert.Empty(t, signature.StepObjectKey())
	assert.True(t, contact.StepCreatedAt().IsZero())

	face = &FaceID{ID: "s-1", FlujoID: "f-1", File: StepFile{ObjectKey: "faceid/s-1"}}
	assert.Equal(t, "faceid/s-1", face.StepObjectKey())
	assert.Equal(t, "f-1", face.StepFlujoID())
}

func TestSignature_Public_HidesObjectKey(t *testing.T) {
	signature := &Signature{ID: "s-1", FlujoID: "f-1", ObjectKey: "signature/s-1", MimeType: "image/png"}

	body, err := json.Marshal(signature.Public())
	require.NoError(t, err)
	assert.NotContains(t, string(body), "signature/s-1")
}
