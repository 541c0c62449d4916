// Package models defines the domain entities for flujos and the steps a respondent completes.
package models

import (
	"slices"
	"time"
)

// Status represents the lifecycle state of a flujo.
type Status string

const (
	StatusCreated  Status = "CREATED"  // Waiting for the respondent to start it
	StatusStarted  Status = "STARTED"  // Running against its deadline
	StatusFinished Status = "FINISHED" // Every required step submitted and closed by the respondent
	StatusLocked   Status = "LOCKED"   // Deadline passed before it was finished
)

// IsClosed reports whether the status is terminal.
func (s Status) IsClosed() bool {
	return s == StatusFinished || s == StatusLocked
}

// StepType identifies one of the fixed kinds of data a flujo can collect.
type StepType string

const (
	StepFace        StepType = "FACE"
	StepContactInfo StepType = "CONTACT_INFO"
	StepSignature   StepType = "SIGNATURE"
)

// StepTypes lists every supported step kind.
var StepTypes = []StepType{StepFace, StepContactInfo, StepSignature}

// Valid reports whether the step type belongs to the supported enumeration.
func (t StepType) Valid() bool {
	return slices.Contains(StepTypes, t)
}

// Flujo is the aggregate root: a time boxed set of steps handed to a respondent.
type Flujo struct {
	ID             string     `json:"id"`
	Types          []StepType `json:"types"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	CompletionTime string     `json:"completion_time"`
	CreatedAt      time.Time  `json:"created_at"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	Status         Status     `json:"status"`
	CompletedSteps []StepType `json:"completed_steps"`
	Passcode       string     `json:"passcode,omitempty"`
}

// Requires reports whether the step type is one of the flujo's required steps.
func (f *Flujo) Requires(step StepType) bool {
	return slices.Contains(f.Types, step)
}

// IsStepCompleted reports whether the step type was already marked as done.
func (f *Flujo) IsStepCompleted(step StepType) bool {
	return slices.Contains(f.CompletedSteps, step)
}

// MarkStepCompleted adds the step to the completed set. Marking an already
// completed step is a no-op.
func (f *Flujo) MarkStepCompleted(step StepType) {
	if f.IsStepCompleted(step) {
		return
	}

	f.CompletedSteps = append(f.CompletedSteps, step)
}

// AllStepsCompleted reports whether every required step has been completed.
func (f *Flujo) AllStepsCompleted() bool {
	for _, step := range f.Types {
		if !f.IsStepCompleted(step) {
			return false
		}
	}

	return true
}

// NeedsPasscode reports whether starting the flujo requires a passcode.
func (f *Flujo) NeedsPasscode() bool {
	return f.Passcode != ""
}

// FlujoPublic is the representation of a flujo returned to callers. The
// passcode never leaves the service.
type FlujoPublic struct {
	ID             string     `json:"id"`
	Types          []StepType `json:"types"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	CompletionTime string     `json:"completion_time"`
	CreatedAt      time.Time  `json:"created_at"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	Status         Status     `json:"status"`
	CompletedSteps []StepType `json:"completed_steps"`
	NeedsPasscode  bool       `json:"needs_passcode"`
}

// Public returns the public representation of the flujo.
func (f *Flujo) Public() *FlujoPublic {
	completed := f.CompletedSteps
	if completed == nil {
		completed = []StepType{}
	}

	return &FlujoPublic{
		ID:             f.ID,
		Types:          slices.Clone(f.Types),
		Title:          f.Title,
		Description:    f.Description,
		CompletionTime: f.CompletionTime,
		CreatedAt:      f.CreatedAt,
		StartTime:      f.StartTime,
		Status:         f.Status,
		CompletedSteps: slices.Clone(completed),
		NeedsPasscode:  f.NeedsPasscode(),
	}
}
