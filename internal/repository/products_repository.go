package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfill-service/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSKU is returned when a create would violate SKU uniqueness.
	ErrDuplicateSKU = errors.New("duplicate sku")
)

// Cache TTL constants
const (
	ProductCacheTTL = 5 * time.Minute
)

// ProductsRepository handles database operations for products, with an
// optional Redis read-through cache for single-product lookups.
type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewProductsRepository creates a new ProductsRepository. The Redis client
// may be nil, in which case caching is disabled.
func NewProductsRepository(db *gorm.DB, redisClient *redis.Client) *ProductsRepository {
	return &ProductsRepository{db: db, redis: redisClient}
}

func productCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("fulfill:products:%s", id.String())
}

func (r *ProductsRepository) invalidateProductCache(ctx context.Context, id uuid.UUID) {
	if r.redis == nil {
		return
	}
	_ = r.redis.Del(ctx, productCacheKey(id)).Err()
}

// CreateProduct creates a new product. Returns ErrDuplicateSKU when the
// normalized SKU is already taken.
func (r *ProductsRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	exists, err := r.SKUExists(ctx, product.SKU)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateSKU
	}
	return r.db.WithContext(ctx).Create(product).Error
}

// GetProductByID retrieves a product by ID with caching.
func (r *ProductsRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if r.redis != nil {
		if val, err := r.redis.Get(ctx, productCacheKey(id)).Result(); err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, productCacheKey(id), data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// GetProductBySKU retrieves a product by its normalized SKU.
func (r *ProductsRepository) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("sku = ?", models.NormalizeSKU(sku)).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// SKUExists checks if a product with the given SKU already exists.
func (r *ProductsRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("sku = ?", models.NormalizeSKU(sku)).
		Count(&count).Error
	return count > 0, err
}

// UpdateProduct applies the given field updates to a product and
// invalidates its cache entry. The SKU, when present, is normalized.
func (r *ProductsRepository) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Product, error) {
	if sku, ok := updates["sku"].(string); ok {
		updates["sku"] = models.NormalizeSKU(sku)
	}
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	r.invalidateProductCache(ctx, id)

	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct deletes a product by ID.
func (r *ProductsRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidateProductCache(ctx, id)
	return nil
}

// DeleteAllProducts removes every product and returns how many were deleted.
func (r *ProductsRepository) DeleteAllProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Count(&count).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&models.Product{}).Error
	})
	return count, err
}

// ListProducts retrieves products with filters and pagination, newest first
// so recently created products appear on the first page.
func (r *ProductsRepository) ListProducts(ctx context.Context, q *models.ListProductsQuery) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Product{})

	if q.SKU != "" {
		query = query.Where("sku LIKE ?", "%"+models.NormalizeSKU(q.SKU)+"%")
	}
	if q.Name != "" {
		query = query.Where("LOWER(name) LIKE LOWER(?)", "%"+q.Name+"%")
	}
	if q.Description != "" {
		query = query.Where("LOWER(description) LIKE LOWER(?)", "%"+q.Description+"%")
	}
	if q.Active != nil {
		query = query.Where("active = ?", *q.Active)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ExistingSKUs returns which of the given normalized SKUs are already
// present in the store.
func (r *ProductsRepository) ExistingSKUs(ctx context.Context, skus []string) ([]string, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var existing []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("sku IN ?", skus).
		Pluck("sku", &existing).Error
	return existing, err
}

// BulkUpsert writes products in a single conflict-resolving statement:
// insert, or on SKU conflict overwrite name, description, active and the
// update timestamp. IDs and creation timestamps of existing rows are kept.
func (r *ProductsRepository) BulkUpsert(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "active", "updated_at"}),
	}).Create(products).Error
}

// BulkInsertSkipConflicts inserts products tolerating SKU conflicts and
// returns the number of rows actually inserted. Rows skipped due to a
// conflict are left untouched; the caller reconciles them.
func (r *ProductsRepository) BulkInsertSkipConflicts(ctx context.Context, products []*models.Product) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		DoNothing: true,
	}).Create(products)
	return result.RowsAffected, result.Error
}

// BulkUpdateBySKU overwrites name, description and active for each product,
// matched by normalized SKU, inside one transaction.
func (r *ProductsRepository) BulkUpdateBySKU(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, product := range products {
			err := tx.Model(&models.Product{}).
				Where("sku = ?", models.NormalizeSKU(product.SKU)).
				Updates(map[string]interface{}{
					"name":        product.Name,
					"description": product.Description,
					"active":      product.Active,
					"updated_at":  now,
				}).Error
			if err != nil {
				return fmt.Errorf("failed to update product %s: %w", product.SKU, err)
			}
		}
		return nil
	})
}

// UpsertOne creates or overwrites a single product by SKU, reporting
// whether it was created. Used as the per-record fallback when bulk
// operations fail.
func (r *ProductsRepository) UpsertOne(ctx context.Context, product *models.Product) (bool, error) {
	sku := models.NormalizeSKU(product.SKU)

	var existing models.Product
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&existing).Error
	if err == nil {
		updateErr := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"name":        product.Name,
				"description": product.Description,
				"active":      product.Active,
				"updated_at":  time.Now(),
			}).Error
		return false, updateErr
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	return true, r.db.WithContext(ctx).Create(product).Error
}

// CountProducts returns the total number of products.
func (r *ProductsRepository) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&count).Error
	return count, err
}
