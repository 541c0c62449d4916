// Package cmd builds the infrastructure the flujo binaries are configured with.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/persistence/file"
	"github.com/dukex/flujo/pkg/persistence/mongodb"
	"github.com/dukex/flujo/pkg/persistence/postgresql"
)

var supportedPersistenceProviders = []string{"file", "mongodb", "postgresql"}

// NewPersistence opens the store selected by the URL scheme. URLs without a
// scheme are file store paths.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	logger.InfoContext(ctx, "Initializing persistence", "provider", provider)

	switch provider {
	case "file":
		return file.NewPersistence(databaseURL), nil
	case "mongodb":
		p, err := mongodb.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		return nil, fmt.Errorf("unsupported persistence provider %q, expected one of %s",
			provider, strings.Join(supportedPersistenceProviders, ", "))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "mongodb", "mongodb+srv":
		return "mongodb"
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return scheme
	}
}
