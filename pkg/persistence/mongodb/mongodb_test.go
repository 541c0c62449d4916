package mongodb_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/flujo/pkg/persistence"
	"github.com/dukex/flujo/pkg/persistence/mongodb"
	"github.com/dukex/flujo/pkg/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupTestDB(t *testing.T) *mongodb.Persistence {
	t.Helper()

	uri := testutil.MongoURI(t)
	dbName := "flujo_test_" + uuid.New().String()[:8]

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := mongodb.NewPersistence(t.Context(), logger, uri+"/"+dbName)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err == nil {
			_ = client.Database(dbName).Drop(ctx)
			_ = client.Disconnect(ctx)
		}

		require.NoError(t, p.Close(ctx))
	})

	return p
}

func TestPersistenceContract(t *testing.T) {
	testutil.RunPersistenceContract(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		return setupTestDB(t)
	})
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	_, err := mongodb.NewPersistence(t.Context(), logger, "mongodb://")
	require.Error(t, err)
}
