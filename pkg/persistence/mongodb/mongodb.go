// Package mongodb provides a MongoDB-backed persistence implementation.
package mongodb

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

const defaultDatabase = "flujo"

// Persistence implements persistence.Persistence on top of a MongoDB database.
type Persistence struct {
	client        *mongo.Client
	logger        *slog.Logger
	flujoRepo     *FlujoRepository
	faceIDRepo    *StepRepository[*models.FaceID]
	contactRepo   *StepRepository[*models.ContactInfo]
	signatureRepo *StepRepository[*models.Signature]
}

// NewPersistence connects to the database named in the URI (defaulting to
// "flujo") and makes sure the indexes exist.
func NewPersistence(ctx context.Context, logger *slog.Logger, uri string) (*Persistence, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid mongodb url: %w", err)
	}

	dbName := cs.Database
	if dbName == "" {
		dbName = defaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	p := newPersistence(client, client.Database(dbName), logger)

	if err := p.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)

		return nil, err
	}

	logger.InfoContext(ctx, "connected to mongodb", "database", dbName)

	return p, nil
}

func newPersistence(client *mongo.Client, db *mongo.Database, logger *slog.Logger) *Persistence {
	return &Persistence{
		client:        client,
		logger:        logger,
		flujoRepo:     &FlujoRepository{coll: db.Collection("flujos")},
		faceIDRepo:    newStepRepository[*models.FaceID](db.Collection("faceids"), models.StepFace),
		contactRepo:   newStepRepository[*models.ContactInfo](db.Collection("contactinfos"), models.StepContactInfo),
		signatureRepo: newStepRepository[*models.Signature](db.Collection("signatures"), models.StepSignature),
	}
}

func (p *Persistence) ensureIndexes(ctx context.Context) error {
	_, err := p.flujoRepo.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create flujos index: %w", err)
	}

	for _, coll := range []*mongo.Collection{p.faceIDRepo.coll, p.contactRepo.coll, p.signatureRepo.coll} {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "flujo_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create %s index: %w", coll.Name(), err)
		}
	}

	return nil
}

// HealthCheck pings the primary.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}

	return nil
}

// Close disconnects the client.
func (p *Persistence) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}

func (p *Persistence) FlujoRepository() persistence.FlujoRepository {
	return p.flujoRepo
}

func (p *Persistence) FaceIDRepository() persistence.StepRepository[*models.FaceID] {
	return p.faceIDRepo
}

func (p *Persistence) ContactInfoRepository() persistence.StepRepository[*models.ContactInfo] {
	return p.contactRepo
}

func (p *Persistence) SignatureRepository() persistence.StepRepository[*models.Signature] {
	return p.signatureRepo
}
