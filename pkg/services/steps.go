package services

import (
	"context"
	"fmt"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/otelhelper"
	"github.com/dukex/flujo/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// StepData is a stored step as seen by the flujo owner.
type StepData struct {
	DownloadURL string `json:"download_url,omitempty"`
	Data        any    `json:"data"`
}

// GetStepData returns the flujo's record of the given kind. Binary steps come
// with a pre-signed download URL.
func (f *Flujo) GetStepData(ctx context.Context, flujoID string, kind models.StepType) (_ *StepData, err error) {
	ctx, span := f.span(ctx, "flujo.get_step_data", flujoID, attribute.String(otelhelper.StepKindKey, string(kind)))
	defer func() { endSpan(span, err) }()

	if _, err := f.get(ctx, "getStepData", flujoID); err != nil {
		return nil, err
	}

	switch kind {
	case models.StepFace:
		step, err := findStep(ctx, f.persistence.FaceIDRepository(), flujoID, kind)
		if err != nil {
			return nil, err
		}

		return f.withDownloadURL(ctx, step, step.Public())
	case models.StepContactInfo:
		step, err := findStep(ctx, f.persistence.ContactInfoRepository(), flujoID, kind)
		if err != nil {
			return nil, err
		}

		return &StepData{Data: step.Public()}, nil
	case models.StepSignature:
		step, err := findStep(ctx, f.persistence.SignatureRepository(), flujoID, kind)
		if err != nil {
			return nil, err
		}

		return f.withDownloadURL(ctx, step, step.Public())
	default:
		return nil, NewValidationError("getStepData", CodeUnsupportedStepKind, fmt.Sprintf("unsupported step kind %q", kind))
	}
}

func findStep[T models.Step](ctx context.Context, repo persistence.StepRepository[T], flujoID string, kind models.StepType) (T, error) {
	step, err := repo.GetByFlujoID(ctx, flujoID)
	if persistence.IsStepNotFound(err) {
		return step, newNotFoundError("getStepData", CodeStepNotFound, fmt.Sprintf("flujo %s has no %s step", flujoID, kind))
	}

	if err != nil {
		return step, fmt.Errorf("failed to load %s of flujo %s: %w", kind, flujoID, err)
	}

	return step, nil
}

func (f *Flujo) withDownloadURL(ctx context.Context, step models.BinaryStep, data any) (*StepData, error) {
	url, err := f.objects.DownloadURL(ctx, step.StepObjectKey())
	if err != nil {
		return nil, fmt.Errorf("failed to issue download url: %w", err)
	}

	return &StepData{DownloadURL: url, Data: data}, nil
}
