//go:build integration

package repository_test

// Runs the order repository against a real Postgres.
// Run with: go test -tags integration ./internal/repository/... -v

import (
	"context"
	"testing"

	"giftpos/internal/infra"
	"giftpos/internal/repository"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestOrderRepository_Postgres(t *testing.T) {
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("giftpos_test"),
		tcPostgres.WithUsername("giftpos"),
		tcPostgres.WithPassword("giftpos"),
		testcontainers.WithWaitStrategy(
			tcPostgres.BasicWaitStrategies()...,
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := infra.NewDatabase(pgURL)
	require.NoError(t, err)

	exerciseOrderRepository(t, repository.NewOrderRepository(db))
}
