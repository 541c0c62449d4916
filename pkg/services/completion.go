package services

import (
	"context"
	"fmt"

	"github.com/dukex/flujo/pkg/deadline"
	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/objectstore"
	"github.com/dukex/flujo/pkg/otelhelper"
	"github.com/dukex/flujo/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
)

// FinishKind is the outcome of a finish request.
type FinishKind string

const (
	FinishOK            FinishKind = "OK"
	FinishNotStarted    FinishKind = "NOT_STARTED"
	FinishAlreadyClosed FinishKind = "ALREADY_CLOSED"
	FinishError         FinishKind = "ERROR"
	FinishCantFinish    FinishKind = "CANT_FINISH"
)

// FinishResult carries the finish outcome. Flujo is only set for FinishOK.
type FinishResult struct {
	Kind  FinishKind          `json:"result_type"`
	Flujo *models.FlujoPublic `json:"flujo"`
}

// Completion runs the step submission protocol for respondents holding a
// flujo scoped access token.
type Completion struct {
	flujos *Flujo
}

// NewCompletion creates a completion service on top of the flujo service.
func NewCompletion(flujos *Flujo) *Completion {
	return &Completion{flujos: flujos}
}

// authorize checks that tok is valid and bound to flujoID.
func (c *Completion) authorize(op, tok, flujoID string) error {
	payload, ok := c.flujos.codec.Verify(tok)
	if !ok {
		return newUnauthorizedError(op, CodeInvalidToken, "invalid or expired token")
	}

	if payload.FlujoID != flujoID {
		return newUnauthorizedError(op, CodeTokenMismatch, "token does not grant access to flujo "+flujoID)
	}

	return nil
}

// open loads the flujo for a step submission. The caller holds the flujo lock.
func (c *Completion) open(ctx context.Context, op, flujoID string, kind models.StepType) (*models.Flujo, error) {
	flujo, err := c.flujos.load(ctx, op, flujoID)
	if err != nil {
		return nil, err
	}

	if !flujo.Requires(kind) {
		return nil, newConflictError(op, CodeStepNotRequired, fmt.Sprintf("flujo %s does not require %s", flujoID, kind))
	}

	switch flujo.Status {
	case models.StatusStarted:
		return flujo, nil
	case models.StatusCreated:
		return nil, newConflictError(op, CodeFlujoNotStarted, "flujo "+flujoID+" was not started")
	default:
		return nil, newConflictError(op, CodeFlujoClosed, fmt.Sprintf("flujo %s is %s", flujoID, flujo.Status))
	}
}

func (c *Completion) markCompleted(ctx context.Context, flujo *models.Flujo, kind models.StepType) error {
	flujo.MarkStepCompleted(kind)

	if err := c.flujos.persistence.FlujoRepository().Save(ctx, flujo); err != nil {
		return fmt.Errorf("failed to save flujo %s: %w", flujo.ID, err)
	}

	c.flujos.logger.InfoContext(ctx, "step completed", "flujo_id", flujo.ID, "step", kind)

	return nil
}

func saveStep[T models.Step](ctx context.Context, op string, repo persistence.StepRepository[T], step T) error {
	err := repo.Save(ctx, step)
	if err == nil {
		return nil
	}

	if persistence.IsStepAlreadyExists(err) {
		return newConflictError(op, CodeStepAlreadyExists, "a step record already exists for flujo "+step.StepFlujoID())
	}

	return fmt.Errorf("failed to save step %s: %w", step.StepID(), err)
}

// existingID returns the id of the flujo's current record of a kind, or a new one.
func existingID[T models.Step](ctx context.Context, repo persistence.StepRepository[T], flujoID string, newID func() string) (string, error) {
	step, err := repo.GetByFlujoID(ctx, flujoID)
	if persistence.IsStepNotFound(err) {
		return newID(), nil
	}

	if err != nil {
		return "", fmt.Errorf("failed to load step of flujo %s: %w", flujoID, err)
	}

	return step.StepID(), nil
}

// SubmitFaceID records a face identity step in WAITING state and returns a
// pre-signed URL the respondent uploads the photo to. The step is marked
// completed by ConfirmFaceID once the object exists. Resubmitting after a
// confirmation puts the record back to WAITING while FACE stays in the
// flujo's completed steps, so the two disagree until the next confirmation.
func (c *Completion) SubmitFaceID(ctx context.Context, tok, flujoID string) (_ *models.FaceIDUpload, err error) {
	ctx, span := c.flujos.span(ctx, "completion.submit_face_id", flujoID, attribute.String(otelhelper.StepKindKey, string(models.StepFace)))
	defer func() { endSpan(span, err) }()

	if err := c.authorize("submitFaceId", tok, flujoID); err != nil {
		return nil, err
	}

	var upload *models.FaceIDUpload

	err = c.flujos.withFlujoLock(ctx, flujoID, func() error {
		if _, err := c.open(ctx, "submitFaceId", flujoID, models.StepFace); err != nil {
			return err
		}

		repo := c.flujos.persistence.FaceIDRepository()

		id, err := existingID(ctx, repo, flujoID, c.flujos.newID)
		if err != nil {
			return err
		}

		key := objectstore.FaceIDKey(id)

		url, err := c.flujos.objects.UploadURL(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to issue upload url: %w", err)
		}

		faceID := &models.FaceID{
			ID:      id,
			FlujoID: flujoID,
			File: models.StepFile{
				ID:        id,
				ObjectKey: key,
				Status:    models.FileStatusWaiting,
			},
			CreatedAt: c.flujos.now(),
		}

		if err := saveStep(ctx, "submitFaceId", repo, faceID); err != nil {
			return err
		}

		span.SetAttributes(attribute.String(otelhelper.StepIDKey, id))
		upload = &models.FaceIDUpload{FlujoID: flujoID, UploadURL: url}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return upload, nil
}

// ConfirmFaceID marks the face identity step completed once its photo is in
// the object store.
func (c *Completion) ConfirmFaceID(ctx context.Context, tok, flujoID string) (_ *models.FaceIDPublic, err error) {
	ctx, span := c.flujos.span(ctx, "completion.confirm_face_id", flujoID, attribute.String(otelhelper.StepKindKey, string(models.StepFace)))
	defer func() { endSpan(span, err) }()

	if err := c.authorize("confirmFaceId", tok, flujoID); err != nil {
		return nil, err
	}

	var faceID *models.FaceID

	err = c.flujos.withFlujoLock(ctx, flujoID, func() error {
		flujo, err := c.open(ctx, "confirmFaceId", flujoID, models.StepFace)
		if err != nil {
			return err
		}

		repo := c.flujos.persistence.FaceIDRepository()

		faceID, err = repo.GetByFlujoID(ctx, flujoID)
		if persistence.IsStepNotFound(err) {
			return newNotFoundError("confirmFaceId", CodeStepNotFound, "no face id submitted for flujo "+flujoID)
		}

		if err != nil {
			return fmt.Errorf("failed to load face id of flujo %s: %w", flujoID, err)
		}

		uploaded, err := c.flujos.objects.Exists(ctx, faceID.File.ObjectKey)
		if err != nil {
			return fmt.Errorf("failed to check face id object: %w", err)
		}

		if !uploaded {
			return newConflictError("confirmFaceId", CodeFaceIDNotUploaded, "face id photo was not uploaded yet")
		}

		faceID.File.Status = models.FileStatusUploaded
		faceID.CreatedAt = c.flujos.now()

		if err := saveStep(ctx, "confirmFaceId", repo, faceID); err != nil {
			return err
		}

		return c.markCompleted(ctx, flujo, models.StepFace)
	})
	if err != nil {
		return nil, err
	}

	return faceID.Public(), nil
}

// SubmitContactInfo stores the respondent's contact information, replacing a
// previous submission under the same id.
func (c *Completion) SubmitContactInfo(ctx context.Context, tok, flujoID string, req ContactInfoRequest) (_ *models.ContactInfoPublic, err error) {
	ctx, span := c.flujos.span(ctx, "completion.submit_contact_info", flujoID, attribute.String(otelhelper.StepKindKey, string(models.StepContactInfo)))
	defer func() { endSpan(span, err) }()

	if err := c.authorize("submitContactInfo", tok, flujoID); err != nil {
		return nil, err
	}

	if err := validateStruct(c.flujos.validate, "submitContactInfo", req); err != nil {
		return nil, err
	}

	var info *models.ContactInfo

	err = c.flujos.withFlujoLock(ctx, flujoID, func() error {
		flujo, err := c.open(ctx, "submitContactInfo", flujoID, models.StepContactInfo)
		if err != nil {
			return err
		}

		repo := c.flujos.persistence.ContactInfoRepository()

		id, err := existingID(ctx, repo, flujoID, c.flujos.newID)
		if err != nil {
			return err
		}

		info = &models.ContactInfo{
			ID:          id,
			FlujoID:     flujoID,
			FullName:    req.FullName,
			BirthDate:   req.BirthDate,
			BornPlace:   req.BornPlace,
			PhoneNumber: req.PhoneNumber,
			Email:       req.Email,
			CreatedAt:   c.flujos.now(),
		}

		if err := saveStep(ctx, "submitContactInfo", repo, info); err != nil {
			return err
		}

		return c.markCompleted(ctx, flujo, models.StepContactInfo)
	})
	if err != nil {
		return nil, err
	}

	return info.Public(), nil
}

// SubmitSignature uploads the signature image and stores its record.
func (c *Completion) SubmitSignature(ctx context.Context, tok, flujoID string, image []byte, mimeType string) (_ *models.SignaturePublic, err error) {
	ctx, span := c.flujos.span(ctx, "completion.submit_signature", flujoID, attribute.String(otelhelper.StepKindKey, string(models.StepSignature)))
	defer func() { endSpan(span, err) }()

	if err := c.authorize("submitSignature", tok, flujoID); err != nil {
		return nil, err
	}

	if err := ValidateSignature(image, mimeType); err != nil {
		return nil, err
	}

	var signature *models.Signature

	err = c.flujos.withFlujoLock(ctx, flujoID, func() error {
		flujo, err := c.open(ctx, "submitSignature", flujoID, models.StepSignature)
		if err != nil {
			return err
		}

		repo := c.flujos.persistence.SignatureRepository()

		id, err := existingID(ctx, repo, flujoID, c.flujos.newID)
		if err != nil {
			return err
		}

		key := objectstore.SignatureKey(id)
		if err := c.flujos.objects.Upload(ctx, key, image, mimeType); err != nil {
			return fmt.Errorf("failed to upload signature: %w", err)
		}

		signature = &models.Signature{
			ID:        id,
			FlujoID:   flujoID,
			ObjectKey: key,
			MimeType:  mimeType,
			CreatedAt: c.flujos.now(),
		}

		if err := saveStep(ctx, "submitSignature", repo, signature); err != nil {
			return err
		}

		return c.markCompleted(ctx, flujo, models.StepSignature)
	})
	if err != nil {
		return nil, err
	}

	return signature.Public(), nil
}

// Finish closes a started flujo whose required steps are all completed.
// Every outcome other than FinishOK leaves the flujo untouched; in particular
// a flujo past its deadline yields FinishError and is not locked here.
func (c *Completion) Finish(ctx context.Context, tok, flujoID string) (_ *FinishResult, err error) {
	ctx, span := c.flujos.span(ctx, "completion.finish", flujoID)
	defer func() { endSpan(span, err) }()

	if err := c.authorize("finish", tok, flujoID); err != nil {
		return nil, err
	}

	var result *FinishResult

	err = c.flujos.withFlujoLock(ctx, flujoID, func() error {
		result, err = c.finish(ctx, flujoID)

		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.FinishKindKey, string(result.Kind)))
	c.flujos.logger.InfoContext(ctx, "flujo finish requested", "flujo_id", flujoID, "result", result.Kind)

	return result, nil
}

func (c *Completion) finish(ctx context.Context, flujoID string) (*FinishResult, error) {
	flujo, err := c.flujos.get(ctx, "finish", flujoID)
	if err != nil {
		return nil, err
	}

	switch {
	case flujo.Status == models.StatusCreated:
		return &FinishResult{Kind: FinishNotStarted}, nil
	case flujo.Status.IsClosed():
		return &FinishResult{Kind: FinishAlreadyClosed}, nil
	}

	end, err := c.flujos.deadlineOf(flujo)
	if err != nil {
		return nil, err
	}

	if deadline.SecondsLeft(c.flujos.now(), end) <= 0 {
		return &FinishResult{Kind: FinishError}, nil
	}

	if !flujo.AllStepsCompleted() {
		return &FinishResult{Kind: FinishCantFinish}, nil
	}

	flujo.Status = models.StatusFinished

	if err := c.flujos.persistence.FlujoRepository().Save(ctx, flujo); err != nil {
		return nil, fmt.Errorf("failed to save flujo %s: %w", flujoID, err)
	}

	return &FinishResult{Kind: FinishOK, Flujo: flujo.Public()}, nil
}
