package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StepRepository stores one step kind per collection. The record is kept as
// an encoded payload next to the keys it is looked up by.
type StepRepository[T models.Step] struct {
	coll *mongo.Collection
	kind models.StepType
}

type stepDoc struct {
	ID        string    `bson:"_id"`
	FlujoID   string    `bson:"flujo_id"`
	UpdatedAt time.Time `bson:"updated_at"`
	Payload   []byte    `bson:"payload"`
}

// toStepDoc stamps updated_at with the time the submission wrote the record.
func toStepDoc(step models.Step) (stepDoc, error) {
	payload, err := json.Marshal(step)
	if err != nil {
		return stepDoc{}, err
	}

	return stepDoc{
		ID:        step.StepID(),
		FlujoID:   step.StepFlujoID(),
		UpdatedAt: step.StepCreatedAt().UTC(),
		Payload:   payload,
	}, nil
}

func newStepRepository[T models.Step](coll *mongo.Collection, kind models.StepType) *StepRepository[T] {
	return &StepRepository[T]{coll: coll, kind: kind}
}

// Save upserts the record. A second record ID for the same flujo violates the
// unique flujo_id index and is reported as persistence.ErrStepAlreadyExists.
func (r *StepRepository[T]) Save(ctx context.Context, step T) error {
	doc, err := toStepDoc(step)
	if err != nil {
		return fmt.Errorf("failed to encode %s step %s: %w", r.kind, step.StepID(), err)
	}

	_, err = r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return persistence.NewStepError("Save", string(r.kind), doc.FlujoID, persistence.ErrStepAlreadyExists)
		}

		return persistence.NewStepError("Save", string(r.kind), doc.FlujoID, err)
	}

	return nil
}

func (r *StepRepository[T]) findOne(ctx context.Context, op, flujoID string, filter bson.M) (T, error) {
	var (
		doc  stepDoc
		step T
	)

	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return step, persistence.NewStepError(op, string(r.kind), flujoID, persistence.ErrStepNotFound)
		}

		return step, fmt.Errorf("failed to find %s step: %w", r.kind, err)
	}

	if err := json.Unmarshal(doc.Payload, &step); err != nil {
		return step, fmt.Errorf("failed to decode %s step %s: %w", r.kind, doc.ID, err)
	}

	return step, nil
}

// GetByID returns the record or an ErrStepNotFound error.
func (r *StepRepository[T]) GetByID(ctx context.Context, id string) (T, error) {
	return r.findOne(ctx, "GetByID", "", bson.M{"_id": id})
}

// GetByFlujoID returns the flujo's record or an ErrStepNotFound error.
func (r *StepRepository[T]) GetByFlujoID(ctx context.Context, flujoID string) (T, error) {
	return r.findOne(ctx, "GetByFlujoID", flujoID, bson.M{"flujo_id": flujoID})
}

// Exists reports whether the record is stored.
func (r *StepRepository[T]) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count %s step %s: %w", r.kind, id, err)
	}

	return n > 0, nil
}

// Delete removes the record; a missing record is not an error.
func (r *StepRepository[T]) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete %s step %s: %w", r.kind, id, err)
	}

	return nil
}
