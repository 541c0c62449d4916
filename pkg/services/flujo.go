package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/dukex/flujo/pkg/deadline"
	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/objectstore"
	"github.com/dukex/flujo/pkg/otelhelper"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/token"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// PageSize is the fixed number of flujos per listing page.
const PageSize = 20

// Flujo is the flujo lifecycle service: creation, reads with lazy expiry,
// start, update and cascading delete.
type Flujo struct {
	options

	persistence persistence.Persistence
	objects     objectstore.ObjectStore
	codec       TokenCodec
	validate    *validator.Validate
}

// NewFlujo creates a new flujo service.
func NewFlujo(p persistence.Persistence, objects objectstore.ObjectStore, codec TokenCodec, opts ...Option) *Flujo {
	return &Flujo{
		options:     newOptions(opts),
		persistence: p,
		objects:     objects,
		codec:       codec,
		validate:    NewValidator(),
	}
}

// StartResult is returned by Start.
type StartResult struct {
	Token       string
	SecondsLeft int64
	Flujo       *models.Flujo
}

// ListResult is one page of flujos.
type ListResult struct {
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Results  []*models.FlujoPublic `json:"results"`
}

// HealthCheck checks the health of the persistence layer and the object store.
func (f *Flujo) HealthCheck(ctx context.Context) (string, bool) {
	if f.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := f.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	if f.objects != nil {
		if err := f.objects.HealthCheck(ctx); err != nil {
			return "Object store is unhealthy: " + err.Error(), false
		}
	}

	return "Persistence layer is healthy", true
}

func (f *Flujo) span(ctx context.Context, name, flujoID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(otelhelper.FlujoIDKey, flujoID))

	return otelhelper.StartSpan(ctx, f.tracer, name, attrs...)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		otelhelper.SetError(span, err, attribute.String("flujo.error.code", ErrorCode(err)))
	}

	span.End()
}

// Create validates the request and stores a new CREATED flujo.
func (f *Flujo) Create(ctx context.Context, req CreateFlujoRequest) (_ *models.Flujo, err error) {
	if err := ValidateCreate(f.validate, req); err != nil {
		return nil, err
	}

	flujo := &models.Flujo{
		ID:             f.newID(),
		Types:          req.Types,
		Title:          req.Title,
		Description:    req.Description,
		CompletionTime: req.CompletionTime,
		CreatedAt:      f.now(),
		Status:         models.StatusCreated,
		CompletedSteps: []models.StepType{},
		Passcode:       req.Passcode,
	}

	ctx, span := f.span(ctx, "flujo.create", flujo.ID)
	defer func() { endSpan(span, err) }()

	if err := f.persistence.FlujoRepository().Save(ctx, flujo); err != nil {
		return nil, fmt.Errorf("failed to save flujo: %w", err)
	}

	f.logger.InfoContext(ctx, "flujo created", "flujo_id", flujo.ID, "types", flujo.Types, "completion_time", flujo.CompletionTime)

	return flujo, nil
}

// get loads a flujo as stored, failing with ErrNotFound when it is absent.
func (f *Flujo) get(ctx context.Context, op, id string) (*models.Flujo, error) {
	flujo, err := f.persistence.FlujoRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsFlujoNotFound(err) {
			return nil, newNotFoundError(op, CodeFlujoNotFound, "flujo "+id+" not found")
		}

		return nil, fmt.Errorf("failed to load flujo %s: %w", id, err)
	}

	return flujo, nil
}

// expired reports whether a STARTED flujo's deadline has been reached.
func (f *Flujo) expired(flujo *models.Flujo) (bool, error) {
	if flujo.Status != models.StatusStarted {
		return false, nil
	}

	end, err := f.deadlineOf(flujo)
	if err != nil {
		return false, err
	}

	return deadline.Expired(f.now(), end), nil
}

func (f *Flujo) deadlineOf(flujo *models.Flujo) (time.Time, error) {
	if flujo.StartTime == nil {
		return time.Time{}, fmt.Errorf("flujo %s is %s without a start time", flujo.ID, flujo.Status)
	}

	end, err := deadline.Deadline(*flujo.StartTime, flujo.CompletionTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("flujo %s has a bad completion time: %w", flujo.ID, err)
	}

	return end, nil
}

func (f *Flujo) lock(ctx context.Context, flujo *models.Flujo) error {
	flujo.Status = models.StatusLocked

	if err := f.persistence.FlujoRepository().Save(ctx, flujo); err != nil {
		return fmt.Errorf("failed to lock flujo %s: %w", flujo.ID, err)
	}

	f.logger.InfoContext(ctx, "flujo locked", "flujo_id", flujo.ID, "start_time", flujo.StartTime, "completion_time", flujo.CompletionTime)

	return nil
}

// load reads a flujo through the lazy expiry path. The caller holds the flujo lock.
func (f *Flujo) load(ctx context.Context, op, id string) (*models.Flujo, error) {
	flujo, err := f.get(ctx, op, id)
	if err != nil {
		return nil, err
	}

	expired, err := f.expired(flujo)
	if err != nil {
		return nil, err
	}

	if expired {
		if err := f.lock(ctx, flujo); err != nil {
			return nil, err
		}
	}

	return flujo, nil
}

// FetchByID returns the flujo. A STARTED flujo past its deadline is moved to
// LOCKED and persisted before it is returned.
func (f *Flujo) FetchByID(ctx context.Context, id string) (_ *models.Flujo, err error) {
	ctx, span := f.span(ctx, "flujo.fetch", id)
	defer func() { endSpan(span, err) }()

	flujo, err := f.get(ctx, "fetch", id)
	if err != nil {
		return nil, err
	}

	expired, err := f.expired(flujo)
	if err != nil || !expired {
		return flujo, err
	}

	err = f.withFlujoLock(ctx, id, func() error {
		flujo, err = f.load(ctx, "fetch", id)

		return err
	})
	if err != nil {
		return nil, err
	}

	return flujo, nil
}

// Update replaces the title and description. The status is left untouched.
func (f *Flujo) Update(ctx context.Context, id string, req UpdateFlujoRequest) (_ *models.Flujo, err error) {
	if err := validateStruct(f.validate, "update", req); err != nil {
		return nil, err
	}

	ctx, span := f.span(ctx, "flujo.update", id)
	defer func() { endSpan(span, err) }()

	var flujo *models.Flujo

	err = f.withFlujoLock(ctx, id, func() error {
		flujo, err = f.load(ctx, "update", id)
		if err != nil {
			return err
		}

		flujo.Title = req.Title
		if req.Description != nil {
			flujo.Description = *req.Description
		}

		if err := f.persistence.FlujoRepository().Save(ctx, flujo); err != nil {
			return fmt.Errorf("failed to save flujo %s: %w", id, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return flujo, nil
}

// Delete removes the flujo after removing its step records and their
// objects. The three step kinds are cleaned up concurrently. Deleting a
// missing flujo succeeds.
func (f *Flujo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := f.span(ctx, "flujo.delete", id)
	defer func() { endSpan(span, err) }()

	return f.withFlujoLock(ctx, id, func() error {
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return deleteStep(gctx, f.persistence.FaceIDRepository(), f.objects, id)
		})
		g.Go(func() error {
			return deleteStep(gctx, f.persistence.ContactInfoRepository(), f.objects, id)
		})
		g.Go(func() error {
			return deleteStep(gctx, f.persistence.SignatureRepository(), f.objects, id)
		})

		if err := g.Wait(); err != nil {
			f.logger.WarnContext(ctx, "flujo cascade delete failed", "flujo_id", id, "error", err)

			return fmt.Errorf("failed to delete steps of flujo %s: %w", id, err)
		}

		if err := f.persistence.FlujoRepository().Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete flujo %s: %w", id, err)
		}

		f.logger.InfoContext(ctx, "flujo deleted", "flujo_id", id)

		return nil
	})
}

func deleteStep[T models.Step](ctx context.Context, repo persistence.StepRepository[T], objects objectstore.ObjectStore, flujoID string) error {
	step, err := repo.GetByFlujoID(ctx, flujoID)
	if persistence.IsStepNotFound(err) {
		return nil
	}

	if err != nil {
		return err
	}

	if binary, ok := any(step).(models.BinaryStep); ok && binary.StepObjectKey() != "" {
		if err := objects.Delete(ctx, binary.StepObjectKey()); err != nil {
			return err
		}
	}

	return repo.Delete(ctx, step.StepID())
}

// List returns a page of flujos, newest first. Negative pages read as page 0.
func (f *Flujo) List(ctx context.Context, page int) (*ListResult, error) {
	page = max(page, 0)

	flujos, err := f.persistence.FlujoRepository().List(ctx, persistence.ListOptions{
		Offset: page * PageSize,
		Limit:  PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flujos: %w", err)
	}

	results := make([]*models.FlujoPublic, 0, len(flujos))
	for _, flujo := range flujos {
		results = append(results, flujo.Public())
	}

	return &ListResult{Page: page, PageSize: PageSize, Results: results}, nil
}

// Start opens a flujo for the respondent and issues an access token valid
// until the flujo's deadline. Starting an already STARTED flujo reissues a
// token without moving the start time.
func (f *Flujo) Start(ctx context.Context, id, passcode string) (_ *StartResult, err error) {
	ctx, span := f.span(ctx, "flujo.start", id)
	defer func() { endSpan(span, err) }()

	var result *StartResult

	err = f.withFlujoLock(ctx, id, func() error {
		result, err = f.start(ctx, id, passcode)

		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.FlujoStatusKey, string(result.Flujo.Status)))

	return result, nil
}

func (f *Flujo) start(ctx context.Context, id, passcode string) (*StartResult, error) {
	flujo, err := f.get(ctx, "start", id)
	if err != nil {
		return nil, err
	}

	if flujo.NeedsPasscode() && subtle.ConstantTimeCompare([]byte(flujo.Passcode), []byte(passcode)) != 1 {
		return nil, newUnauthorizedError("start", CodeWrongPasscode, "wrong passcode")
	}

	now := f.now()

	switch flujo.Status {
	case models.StatusCreated:
		end, err := deadline.Deadline(now, flujo.CompletionTime)
		if err != nil {
			return nil, fmt.Errorf("flujo %s has a bad completion time: %w", id, err)
		}

		flujo.Status = models.StatusStarted
		flujo.StartTime = &now
		secondsLeft := deadline.SecondsLeft(now, end)

		tok, err := f.codec.Sign(token.Payload{FlujoID: id}, secondsLeft)
		if err != nil {
			return nil, err
		}

		if err := f.persistence.FlujoRepository().Save(ctx, flujo); err != nil {
			return nil, fmt.Errorf("failed to save flujo %s: %w", id, err)
		}

		f.logger.InfoContext(ctx, "flujo started", "flujo_id", id, "seconds_left", secondsLeft)

		return &StartResult{Token: tok, SecondsLeft: secondsLeft, Flujo: flujo}, nil

	case models.StatusStarted:
		end, err := f.deadlineOf(flujo)
		if err != nil {
			return nil, err
		}

		secondsLeft := deadline.SecondsLeft(now, end)
		if secondsLeft < 1 {
			if err := f.lock(ctx, flujo); err != nil {
				return nil, err
			}

			return nil, newConflictError("start", CodeDeadlinePassed, "flujo "+id+" deadline has passed")
		}

		tok, err := f.codec.Sign(token.Payload{FlujoID: id}, secondsLeft)
		if err != nil {
			return nil, err
		}

		f.logger.DebugContext(ctx, "flujo token reissued", "flujo_id", id, "seconds_left", secondsLeft)

		return &StartResult{Token: tok, SecondsLeft: secondsLeft, Flujo: flujo}, nil

	default:
		return nil, newConflictError("start", CodeFlujoClosed, fmt.Sprintf("flujo %s is %s", id, flujo.Status))
	}
}
