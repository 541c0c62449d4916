package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FlujoRepository stores flujos in the "flujos" collection.
type FlujoRepository struct {
	coll *mongo.Collection
}

type flujoDoc struct {
	ID             string     `bson:"_id"`
	Types          []string   `bson:"types"`
	Title          string     `bson:"title"`
	Description    string     `bson:"description,omitempty"`
	CompletionTime string     `bson:"completion_time"`
	CreatedAt      time.Time  `bson:"created_at"`
	StartTime      *time.Time `bson:"start_time,omitempty"`
	Status         string     `bson:"status"`
	CompletedSteps []string   `bson:"completed_steps"`
	Passcode       string     `bson:"passcode,omitempty"`
}

func toFlujoDoc(f *models.Flujo) flujoDoc {
	return flujoDoc{
		ID:             f.ID,
		Types:          stepTypeStrings(f.Types),
		Title:          f.Title,
		Description:    f.Description,
		CompletionTime: f.CompletionTime,
		CreatedAt:      f.CreatedAt,
		StartTime:      f.StartTime,
		Status:         string(f.Status),
		CompletedSteps: stepTypeStrings(f.CompletedSteps),
		Passcode:       f.Passcode,
	}
}

func (d flujoDoc) model() *models.Flujo {
	return &models.Flujo{
		ID:             d.ID,
		Types:          stepTypes(d.Types),
		Title:          d.Title,
		Description:    d.Description,
		CompletionTime: d.CompletionTime,
		CreatedAt:      d.CreatedAt.UTC(),
		StartTime:      utcPtr(d.StartTime),
		Status:         models.Status(d.Status),
		CompletedSteps: stepTypes(d.CompletedSteps),
		Passcode:       d.Passcode,
	}
}

// Save upserts the flujo document.
func (r *FlujoRepository) Save(ctx context.Context, flujo *models.Flujo) error {
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": flujo.ID}, toFlujoDoc(flujo), options.Replace().SetUpsert(true))
	if err != nil {
		return persistence.NewFlujoError("Save", flujo.ID, err)
	}

	return nil
}

// GetByID returns the flujo or an ErrFlujoNotFound error.
func (r *FlujoRepository) GetByID(ctx context.Context, id string) (*models.Flujo, error) {
	var doc flujoDoc

	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			err = persistence.ErrFlujoNotFound
		}

		return nil, persistence.NewFlujoError("GetByID", id, err)
	}

	return doc.model(), nil
}

// Exists reports whether the flujo is stored.
func (r *FlujoRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, persistence.NewFlujoError("Exists", id, err)
	}

	return n > 0, nil
}

// Delete removes the flujo; a missing flujo is not an error.
func (r *FlujoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return persistence.NewFlujoError("Delete", id, err)
	}

	return nil
}

// List returns one page of flujos, newest first.
func (r *FlujoRepository) List(ctx context.Context, opts persistence.ListOptions) ([]*models.Flujo, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(max(opts.Offset, 0)))
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := r.coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list flujos: %w", err)
	}
	defer cur.Close(ctx)

	flujos := make([]*models.Flujo, 0)

	for cur.Next(ctx) {
		var doc flujoDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode flujo: %w", err)
		}

		flujos = append(flujos, doc.model())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate flujos: %w", err)
	}

	return flujos, nil
}

func stepTypeStrings(types []models.StepType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}

	return out
}

func stepTypes(values []string) []models.StepType {
	out := make([]models.StepType, 0, len(values))
	for _, v := range values {
		out = append(out, models.StepType(v))
	}

	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	utc := t.UTC()

	return &utc
}
