// Package postgresql provides a PostgreSQL persistence implementation storing flujos and steps as JSONB documents.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/flujo/pkg/models"
	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	flujoRepo     *FlujoRepository
	faceIDRepo    *StepRepository[*models.FaceID]
	contactRepo   *StepRepository[*models.ContactInfo]
	signatureRepo *StepRepository[*models.Signature]
}

// NewPersistence creates a new PostgreSQL persistence layer and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		flujoRepo:     &FlujoRepository{db: database},
		faceIDRepo:    &StepRepository[*models.FaceID]{db: database, kind: models.StepFace},
		contactRepo:   &StepRepository[*models.ContactInfo]{db: database, kind: models.StepContactInfo},
		signatureRepo: &StepRepository[*models.Signature]{db: database, kind: models.StepSignature},
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
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
