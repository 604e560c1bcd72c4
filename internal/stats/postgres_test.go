package stats_test

import (
	"context"
	"decode-server/internal/stats"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	ctr, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("decode"),
		postgres.WithUsername("decode"),
		postgres.WithPassword("decode"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	connString, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	runStoreSuite(t, func(t *testing.T) stats.Store {
		store, err := stats.NewPostgresStore(ctx, connString)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		conn, err := pgx.Connect(ctx, connString)
		require.NoError(t, err)
		defer conn.Close(ctx)
		_, err = conn.Exec(ctx, "TRUNCATE player_stats")
		require.NoError(t, err)

		return store
	})
}
