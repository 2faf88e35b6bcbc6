//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iagopasso/revendis-sub001/internal/aggregate"
	"github.com/iagopasso/revendis-sub001/internal/brand"
	"github.com/iagopasso/revendis-sub001/internal/domain/catalog"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "catalog",
				"POSTGRES_PASSWORD": "catalog",
				"POSTGRES_DB":       "catalog",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://catalog:catalog@%s:%s/catalog?sslmode=disable", host, port.Port())
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestSnapshotRepository(t *testing.T) {
	ctx := context.Background()
	pool, err := NewPool(ctx, startPostgres(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))

	repo := NewSnapshotRepository(pool)
	_, err = repo.LatestRun(ctx)
	require.ErrorIs(t, err, ErrNoRuns)

	first := aggregate.Result{
		Products: []catalog.Product{
			{ID: "AV-1", SKU: "AV-1", Name: "Batom", Brand: "Avon", Price: price("19.90"), InStock: true,
				SourceCategory: "maquiagem", SourceBrand: brand.Avon},
			{ID: "AV-2", SKU: "AV-2", Name: "Colonia", Brand: "Avon", InStock: false,
				SourceCategory: "perfumes", SourceBrand: brand.Avon},
			{ID: "NATURA-1", SKU: "1", Name: "Sabonete", Brand: "Natura", Price: price("9.90"),
				PurchasePrice: price("6.93"), InStock: true, SourceCategory: "corpo", SourceBrand: brand.Natura},
		},
		PerBrand: []aggregate.BrandReport{
			{Brand: brand.Avon, Source: catalog.SourceUpstream, Products: 2},
			{Brand: brand.Natura, Source: catalog.SourceSample, Products: 1, FailedSources: []string{"https://www.natura.com.br"}},
		},
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	run1 := Run{ID: uuid.New(), StartedAt: now.Add(-time.Minute), FinishedAt: now}
	require.NoError(t, repo.Save(ctx, run1, first, SaveOptions{}))

	avon, err := repo.Products(ctx, brand.Avon)
	require.NoError(t, err)
	require.Len(t, avon, 2)
	assert.Equal(t, "Batom", avon[0].Name)
	assert.True(t, avon[0].Price.Decimal.Equal(decimal.RequireFromString("19.90")))
	assert.False(t, avon[1].Price.Valid)
	assert.Equal(t, brand.Avon, avon[1].SourceBrand)

	second := aggregate.Result{
		Products: []catalog.Product{
			{ID: "AV-1", SKU: "AV-1", Name: "Batom Matte", Brand: "Avon", Price: price("21.50"), InStock: true,
				SourceCategory: "maquiagem", SourceBrand: brand.Avon},
		},
		PerBrand: []aggregate.BrandReport{
			{Brand: brand.Avon, Source: catalog.SourceUpstream, Products: 1},
			{Brand: brand.Natura, Source: catalog.SourceSample},
		},
	}
	run2 := Run{ID: uuid.New(), StartedAt: now, FinishedAt: now.Add(time.Minute)}
	require.NoError(t, repo.Save(ctx, run2, second, SaveOptions{ClearMissing: true}))

	avon, err = repo.Products(ctx, brand.Avon)
	require.NoError(t, err)
	require.Len(t, avon, 1)
	assert.Equal(t, "Batom Matte", avon[0].Name)

	// Sample-served brands are never cleared.
	natura, err := repo.Products(ctx, brand.Natura)
	require.NoError(t, err)
	require.Len(t, natura, 1)
	assert.True(t, natura[0].PurchasePrice.Decimal.Equal(decimal.RequireFromString("6.93")))

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, run2.ID, latest.ID)
	assert.Equal(t, 1, latest.Products)
}
