// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/flujo/pkg/models"
	"github.com/google/uuid"
)

// CreateTestFlujo creates a CREATED flujo requiring every step kind, with values that can be overridden.
func CreateTestFlujo(overrides ...func(*models.Flujo)) *models.Flujo {
	flujo := &models.Flujo{
		ID:             uuid.New().String(),
		Types:          []models.StepType{models.StepFace, models.StepContactInfo, models.StepSignature},
		Title:          "Onboarding",
		Description:    "Identity check for new customers",
		CompletionTime: "1h",
		CreatedAt:      time.Date(2024, time.April, 19, 12, 0, 0, 0, time.UTC),
		Status:         models.StatusCreated,
		CompletedSteps: []models.StepType{},
	}

	for _, override := range overrides {
		override(flujo)
	}

	return flujo
}

// WithTypes sets the required step kinds.
func WithTypes(types ...models.StepType) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.Types = types
	}
}

// WithCompletionTime sets the completion time expression.
func WithCompletionTime(expr string) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.CompletionTime = expr
	}
}

// WithPasscode sets the passcode needed to start the flujo.
func WithPasscode(passcode string) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.Passcode = passcode
	}
}

// WithCreatedAt sets the creation time.
func WithCreatedAt(createdAt time.Time) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.CreatedAt = createdAt
	}
}

// WithStarted marks the flujo as STARTED at the given time.
func WithStarted(startTime time.Time) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.Status = models.StatusStarted
		f.StartTime = &startTime
	}
}

// WithStatus sets the status without touching the start time.
func WithStatus(status models.Status) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.Status = status
	}
}

// WithCompletedSteps sets the completed step kinds.
func WithCompletedSteps(steps ...models.StepType) func(*models.Flujo) {
	return func(f *models.Flujo) {
		f.CompletedSteps = steps
	}
}

// CreateTestFaceID creates a WAITING face identity record for the flujo.
func CreateTestFaceID(flujoID string) *models.FaceID {
	id := uuid.New().String()

	return &models.FaceID{
		ID:      id,
		FlujoID: flujoID,
		File: models.StepFile{
			ID:        id,
			ObjectKey: "faceid/" + id,
			Status:    models.FileStatusWaiting,
		},
		CreatedAt: time.Date(2024, time.April, 19, 12, 5, 0, 0, time.UTC),
	}
}

// CreateTestContactInfo creates a contact information record for the flujo.
func CreateTestContactInfo(flujoID string) *models.ContactInfo {
	return &models.ContactInfo{
		ID:          uuid.New().String(),
		FlujoID:     flujoID,
		FullName:    "Ada Lovelace",
		BirthDate:   "1815-12-10",
		BornPlace:   "London",
		PhoneNumber: "+5511987654321",
		Email:       "ada@example.com",
		CreatedAt:   time.Date(2024, time.April, 19, 12, 5, 0, 0, time.UTC),
	}
}

// CreateTestSignature creates a PNG signature record for the flujo.
func CreateTestSignature(flujoID string) *models.Signature {
	id := uuid.New().String()

	return &models.Signature{
		ID:        id,
		FlujoID:   flujoID,
		ObjectKey: "signature/" + id,
		MimeType:  "image/png",
		CreatedAt: time.Date(2024, time.April, 19, 12, 5, 0, 0, time.UTC),
	}
}
