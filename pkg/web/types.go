// Package web provides HTTP request and response types for the flujo API.
package web

import (
	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/services"
)

// TokenBody carries the access token for clients that cannot set the
// Authorization header.
type TokenBody struct {
	Token       string `json:"token,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

func (b TokenBody) value() string {
	if b.Token != "" {
		return b.Token
	}

	return b.AccessToken
}

// StartFlujoRequest is the body of a start request.
type StartFlujoRequest struct {
	Passcode string `json:"passcode,omitempty"`
}

// StartFlujoResponse is returned when a flujo is started.
type StartFlujoResponse struct {
	Token       string              `json:"token"`
	SecondsLeft int64               `json:"seconds_left"`
	Flujo       *models.FlujoPublic `json:"flujo"`
}

// ContactInfoBody is the body of a contact information submission.
type ContactInfoBody struct {
	services.ContactInfoRequest
	TokenBody
}

// stepKinds maps the step kind path segment to its step type.
var stepKinds = map[string]models.StepType{
	"face":         models.StepFace,
	"contact-info": models.StepContactInfo,
	"signature":    models.StepSignature,
}
