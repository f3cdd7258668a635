package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"fulfill-service/internal/models"
	"fulfill-service/internal/repository"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestProductsRepo(t *testing.T) *repository.ProductsRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	return repository.NewProductsRepository(db, nil)
}

func fetchAllProducts(t *testing.T, repo *repository.ProductsRepository) map[string]models.Product {
	t.Helper()
	products, _, err := repo.ListProducts(context.Background(), &models.ListProductsQuery{Page: 1, Limit: 1000})
	require.NoError(t, err)
	bySKU := make(map[string]models.Product, len(products))
	for _, p := range products {
		bySKU[p.SKU] = p
	}
	return bySKU
}

func sampleRecords() []ProductRecord {
	return []ProductRecord{
		{SKU: "alpha-1", Name: "Alpha", Description: "first", Active: true},
		{SKU: "beta-2", Name: "Beta", Active: true},
		{SKU: "gamma-3", Name: "Gamma", Active: false},
	}
}

func TestAtomicUpsertCreatesThenUpdates(t *testing.T) {
	repo := newTestProductsRepo(t)
	strategy := NewAtomicUpsertStrategy(repo)
	ctx := context.Background()

	created, updated, err := strategy.Apply(ctx, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 0, updated)

	// Same batch again: everything is an update, state converges
	records := sampleRecords()
	records[0].Name = "Alpha v2"
	created, updated, err = strategy.Apply(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 3, updated)

	products := fetchAllProducts(t, repo)
	require.Len(t, products, 3)
	assert.Equal(t, "Alpha v2", products["alpha-1"].Name)
	assert.False(t, products["gamma-3"].Active)
}

func TestQuerySplitUpsertCreatesThenUpdates(t *testing.T) {
	repo := newTestProductsRepo(t)
	strategy := NewQuerySplitUpsertStrategy(repo, testLogger())
	ctx := context.Background()

	created, updated, err := strategy.Apply(ctx, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 0, updated)

	records := sampleRecords()
	records[1].Name = "Beta v2"
	created, updated, err = strategy.Apply(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 3, updated)

	products := fetchAllProducts(t, repo)
	require.Len(t, products, 3)
	assert.Equal(t, "Beta v2", products["beta-2"].Name)
}

func TestStrategiesConvergeToSameState(t *testing.T) {
	atomicRepo := newTestProductsRepo(t)
	splitRepo := newTestProductsRepo(t)
	atomic := NewAtomicUpsertStrategy(atomicRepo)
	split := NewQuerySplitUpsertStrategy(splitRepo, testLogger())
	ctx := context.Background()

	batches := [][]ProductRecord{
		sampleRecords(),
		{
			{SKU: "alpha-1", Name: "Alpha reworked", Active: false},
			{SKU: "delta-4", Name: "Delta", Active: true},
		},
	}

	for _, batch := range batches {
		aCreated, aUpdated, err := atomic.Apply(ctx, batch)
		require.NoError(t, err)
		sCreated, sUpdated, err := split.Apply(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, aCreated, sCreated)
		assert.Equal(t, aUpdated, sUpdated)
	}

	atomicProducts := fetchAllProducts(t, atomicRepo)
	splitProducts := fetchAllProducts(t, splitRepo)
	require.Equal(t, len(atomicProducts), len(splitProducts))
	for sku, p := range atomicProducts {
		other, ok := splitProducts[sku]
		require.True(t, ok, "missing sku %s", sku)
		assert.Equal(t, p.Name, other.Name)
		assert.Equal(t, p.Active, other.Active)
	}
}

type failingStrategy struct{}

func (failingStrategy) Apply(ctx context.Context, records []ProductRecord) (int, int, error) {
	return 0, 0, errors.New("simulated strategy failure")
}

func TestEngineFallsBackPerBatch(t *testing.T) {
	repo := newTestProductsRepo(t)
	fallback := NewQuerySplitUpsertStrategy(repo, testLogger())
	engine := NewUpsertEngineWithStrategies(failingStrategy{}, fallback, testLogger())

	created, updated, err := engine.Apply(context.Background(), sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 0, updated)
	assert.Len(t, fetchAllProducts(t, repo), 3)
}

func TestEngineWithoutFallbackPropagatesError(t *testing.T) {
	engine := NewUpsertEngineWithStrategies(failingStrategy{}, nil, testLogger())

	_, _, err := engine.Apply(context.Background(), sampleRecords())
	assert.Error(t, err)
}

func TestEngineDeduplicatesDefensively(t *testing.T) {
	repo := newTestProductsRepo(t)
	engine := NewUpsertEngine(repo, true, testLogger())

	records := []ProductRecord{
		{SKU: "dup-1", Name: "First", Active: true},
		{SKU: "dup-1", Name: "Second", Active: true},
	}

	created, updated, err := engine.Apply(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 0, updated)

	products := fetchAllProducts(t, repo)
	require.Len(t, products, 1)
	assert.Equal(t, "Second", products["dup-1"].Name)
}

func TestEngineEmptyBatch(t *testing.T) {
	repo := newTestProductsRepo(t)
	engine := NewUpsertEngine(repo, false, testLogger())

	created, updated, err := engine.Apply(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, updated)
}
