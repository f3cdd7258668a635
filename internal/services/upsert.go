package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"fulfill-service/internal/models"
)

// UpsertStore is the slice of the products store the upsert engine needs.
// *repository.ProductsRepository satisfies it.
type UpsertStore interface {
	ExistingSKUs(ctx context.Context, skus []string) ([]string, error)
	BulkUpsert(ctx context.Context, products []*models.Product) error
	BulkInsertSkipConflicts(ctx context.Context, products []*models.Product) (int64, error)
	BulkUpdateBySKU(ctx context.Context, products []*models.Product) error
	UpsertOne(ctx context.Context, product *models.Product) (bool, error)
}

// UpsertStrategy applies one deduplicated batch to the store and reports
// how many records were created vs updated.
type UpsertStrategy interface {
	Apply(ctx context.Context, records []ProductRecord) (created, updated int, err error)
}

// AtomicUpsertStrategy issues a single conflict-resolving bulk write. The
// write itself is atomic and race-free; the existing-SKU query beforehand
// is only for attributing created vs updated counts and may be off under
// concurrent writers touching the same SKUs.
type AtomicUpsertStrategy struct {
	store UpsertStore
}

// NewAtomicUpsertStrategy creates the conflict-clause strategy.
func NewAtomicUpsertStrategy(store UpsertStore) *AtomicUpsertStrategy {
	return &AtomicUpsertStrategy{store: store}
}

func (s *AtomicUpsertStrategy) Apply(ctx context.Context, records []ProductRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	skus := make([]string, len(records))
	products := make([]*models.Product, len(records))
	for i, rec := range records {
		skus[i] = rec.SKU
		products[i] = rec.Model()
	}

	existing, err := s.store.ExistingSKUs(ctx, skus)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query existing SKUs: %w", err)
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, sku := range existing {
		existingSet[sku] = struct{}{}
	}

	updated := 0
	for _, sku := range skus {
		if _, ok := existingSet[sku]; ok {
			updated++
		}
	}

	if err := s.store.BulkUpsert(ctx, products); err != nil {
		return 0, 0, fmt.Errorf("bulk upsert failed: %w", err)
	}

	return len(records) - updated, updated, nil
}

// QuerySplitUpsertStrategy is the portable fallback: query existing SKUs,
// split the batch into creates and updates, bulk-insert the creates
// tolerating conflicts, reconcile conflicted inserts as updates, then
// bulk-update. Converges to the same final store state as the atomic
// strategy for the same input, though count attribution may differ when
// racing concurrent writers.
type QuerySplitUpsertStrategy struct {
	store  UpsertStore
	logger *logrus.Entry
}

// NewQuerySplitUpsertStrategy creates the query-then-split strategy.
func NewQuerySplitUpsertStrategy(store UpsertStore, logger *logrus.Logger) *QuerySplitUpsertStrategy {
	return &QuerySplitUpsertStrategy{
		store:  store,
		logger: logger.WithField("component", "upsert-query-split"),
	}
}

func (s *QuerySplitUpsertStrategy) Apply(ctx context.Context, records []ProductRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	skus := make([]string, len(records))
	for i, rec := range records {
		skus[i] = rec.SKU
	}

	existing, err := s.store.ExistingSKUs(ctx, skus)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query existing SKUs: %w", err)
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, sku := range existing {
		existingSet[sku] = struct{}{}
	}

	var toCreate, toUpdate []*models.Product
	for _, rec := range records {
		if _, ok := existingSet[rec.SKU]; ok {
			toUpdate = append(toUpdate, rec.Model())
		} else {
			toCreate = append(toCreate, rec.Model())
		}
	}

	created := 0
	updated := 0

	if len(toCreate) > 0 {
		inserted, err := s.store.BulkInsertSkipConflicts(ctx, toCreate)
		if err != nil {
			// The bulk insert itself failed; fall back to per-record
			// create-or-update for this sublist.
			s.logger.WithError(err).Warn("Bulk insert failed, falling back to per-record upsert")
			created, updated, err = s.upsertEach(ctx, toCreate)
			if err != nil {
				return 0, 0, err
			}
		} else {
			created = int(inserted)
			if conflicted := len(toCreate) - created; conflicted > 0 {
				// A concurrent writer inserted some of these SKUs between
				// our query and the insert. Overwrite the whole sublist by
				// SKU: a no-op for the rows we just inserted, and the
				// reconciling update for the conflicted ones.
				s.logger.WithField("conflicted", conflicted).
					Debug("Reconciling insert conflicts as updates")
				if err := s.store.BulkUpdateBySKU(ctx, toCreate); err != nil {
					return 0, 0, fmt.Errorf("failed to reconcile conflicted inserts: %w", err)
				}
				updated += conflicted
			}
		}
	}

	if len(toUpdate) > 0 {
		if err := s.store.BulkUpdateBySKU(ctx, toUpdate); err != nil {
			return 0, 0, fmt.Errorf("bulk update failed: %w", err)
		}
		updated += len(toUpdate)
	}

	return created, updated, nil
}

// upsertEach is the last-resort path: one create-or-update per record.
func (s *QuerySplitUpsertStrategy) upsertEach(ctx context.Context, products []*models.Product) (int, int, error) {
	created := 0
	updated := 0
	for _, product := range products {
		wasCreated, err := s.store.UpsertOne(ctx, product)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert product %s: %w", product.SKU, err)
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

// UpsertEngine applies batches through a primary strategy, falling back to
// a secondary one for the batch when the primary errors. Batches are
// deduplicated defensively (last occurrence wins) before any write.
type UpsertEngine struct {
	primary  UpsertStrategy
	fallback UpsertStrategy
	logger   *logrus.Entry
}

// NewUpsertEngine builds the engine for a store. When atomicUpserts is
// set (the store supports conflict-resolving bulk writes, e.g. postgres)
// the atomic strategy runs first with the query-split strategy as the
// per-batch fallback; otherwise the query-split strategy runs alone.
// The choice is made once per deployment, not per batch.
func NewUpsertEngine(store UpsertStore, atomicUpserts bool, logger *logrus.Logger) *UpsertEngine {
	querySplit := NewQuerySplitUpsertStrategy(store, logger)
	engine := &UpsertEngine{
		primary: querySplit,
		logger:  logger.WithField("component", "upsert-engine"),
	}
	if atomicUpserts {
		engine.primary = NewAtomicUpsertStrategy(store)
		engine.fallback = querySplit
	}
	return engine
}

// NewUpsertEngineWithStrategies wires explicit strategies; used by tests.
func NewUpsertEngineWithStrategies(primary, fallback UpsertStrategy, logger *logrus.Logger) *UpsertEngine {
	return &UpsertEngine{
		primary:  primary,
		fallback: fallback,
		logger:   logger.WithField("component", "upsert-engine"),
	}
}

// Apply writes one batch and returns (created, updated). Re-applying the
// same batch is idempotent: the second run reports everything as updated
// and leaves the store state unchanged.
func (e *UpsertEngine) Apply(ctx context.Context, records []ProductRecord) (int, int, error) {
	records = DeduplicateRecords(records)
	if len(records) == 0 {
		return 0, 0, nil
	}

	created, updated, err := e.primary.Apply(ctx, records)
	if err == nil {
		return created, updated, nil
	}
	if e.fallback == nil {
		return 0, 0, err
	}

	e.logger.WithError(err).Warn("Primary upsert strategy failed, retrying batch with fallback")
	return e.fallback.Apply(ctx, records)
}
