// internal/services/price_store.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// PriceStore is the access layer over editable_content, product_prices and
// products. Every write is a single-row upsert keyed by a natural key.
type PriceStore struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewPriceStore(db *gorm.DB) *PriceStore {
	return &PriceStore{
		db:  db,
		log: logrus.WithField("component", "price_store"),
	}
}

// GetContent is a point lookup. ok is false when the key has no row.
func (s *PriceStore) GetContent(ctx context.Context, key models.ContentKey) (string, bool, error) {
	var row models.EditableContent
	err := s.db.WithContext(ctx).Where("content_key = ?", key.String()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read content %s: %w", key, err)
	}
	return row.Content, true, nil
}

// GetContents fetches several keys in one IN query. Missing keys are absent
// from the result.
func (s *PriceStore) GetContents(ctx context.Context, keys []models.ContentKey) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	raw := make([]string, 0, len(keys))
	for _, k := range keys {
		raw = append(raw, k.String())
	}

	var rows []models.EditableContent
	if err := s.db.WithContext(ctx).Where("content_key IN ?", raw).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read contents: %w", err)
	}

	for _, row := range rows {
		result[row.ContentKey] = row.Content
	}
	return result, nil
}

func (s *PriceStore) UpsertContent(ctx context.Context, key models.ContentKey, value string) error {
	row := models.EditableContent{ContentKey: key.String(), Content: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "content_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write content %s: %w", key, err)
	}
	return nil
}

// FindDiscountAnnotations returns the global and per-variant discount rows of
// all productIDs in a single query. LIKE wildcards inside ids may overmatch,
// callers decode and filter the keys.
func (s *PriceStore) FindDiscountAnnotations(ctx context.Context, productIDs []string) ([]models.EditableContent, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	globals := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		globals = append(globals, models.ProductContentKey(id, models.FieldDiscountPercentage).String())
	}

	conds := s.db.Where("content_key IN ?", globals)
	for _, id := range productIDs {
		conds = conds.Or("content_key LIKE ?", "product_"+id+"_variant_%_option_%_"+string(models.FieldDiscountPercentage))
	}

	var rows []models.EditableContent
	if err := s.db.WithContext(ctx).Where(conds).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read discount annotations: %w", err)
	}
	return rows, nil
}

// ActivePriceRecord returns the most recently created active record matching
// the product, variant and discount flag, or nil.
func (s *PriceStore) ActivePriceRecord(ctx context.Context, productID string, variant *models.Variant, isDiscount bool) (*models.PriceRecord, error) {
	label, value := variantColumns(variant)

	var rec models.PriceRecord
	err := s.db.WithContext(ctx).
		Where("product_id = ? AND variant_label = ? AND variant_value = ?", productID, label, value).
		Where("is_discount = ? AND active = ?", isDiscount, true).
		Order("created_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read price record for %s: %w", productID, err)
	}
	return &rec, nil
}

// UpsertPriceRecord writes rec by lookup key. An active catalog record
// deactivates its active catalog siblings first so at most one remains.
func (s *PriceStore) UpsertPriceRecord(ctx context.Context, rec *models.PriceRecord) error {
	db := s.db.WithContext(ctx)

	if rec.Active && !rec.IsDiscount {
		err := db.Model(&models.PriceRecord{}).
			Where("product_id = ? AND variant_label = ? AND variant_value = ?", rec.ProductID, rec.VariantLabel, rec.VariantValue).
			Where("is_discount = ? AND active = ? AND lookup_key <> ?", false, true, rec.LookupKey).
			Update("active", false).Error
		if err != nil {
			return fmt.Errorf("failed to deactivate previous prices of %s: %w", rec.ProductID, err)
		}
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lookup_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_price_id", "unit_amount", "currency", "is_discount", "active", "updated_at",
		}),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert price record %s: %w", rec.LookupKey, err)
	}

	s.log.WithFields(logrus.Fields{
		"product_id": rec.ProductID,
		"lookup_key": rec.LookupKey,
		"discount":   rec.IsDiscount,
	}).Debug("Price record upserted")
	return nil
}

// DeactivatePriceRecords deactivates and returns the active records matching
// the product, variant and discount flag, except the one holding keepLookupKey.
func (s *PriceStore) DeactivatePriceRecords(ctx context.Context, productID string, variant *models.Variant, isDiscount bool, keepLookupKey string) ([]models.PriceRecord, error) {
	label, value := variantColumns(variant)
	db := s.db.WithContext(ctx)

	var records []models.PriceRecord
	err := db.Where("product_id = ? AND variant_label = ? AND variant_value = ?", productID, label, value).
		Where("is_discount = ? AND active = ? AND lookup_key <> ?", isDiscount, true, keepLookupKey).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list price records of %s: %w", productID, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]interface{}, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	if err := db.Model(&models.PriceRecord{}).Where("id IN ?", ids).Update("active", false).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate price records of %s: %w", productID, err)
	}

	return records, nil
}

func (s *PriceStore) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read product %s: %w", id, err)
	}
	return &product, nil
}

// GetProducts loads several products in one query, keyed by id.
func (s *PriceStore) GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	result := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	for i := range products {
		result[products[i].ID] = &products[i]
	}
	return result, nil
}

func (s *PriceStore) UpsertProduct(ctx context.Context, product *models.Product) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "base_price", "currency", "category", "image_url", "updated_at"}),
	}).Create(product).Error
	if err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", product.ID, err)
	}
	return nil
}

func (s *PriceStore) SetProductImage(ctx context.Context, id, url string) error {
	res := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("image_url", url)
	if res.Error != nil {
		return fmt.Errorf("failed to update image of product %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// SetProductBasePrice is a no-op for unknown products.
func (s *PriceStore) SetProductBasePrice(ctx context.Context, id string, amount decimal.Decimal) error {
	err := s.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("base_price", amount).Error
	if err != nil {
		return fmt.Errorf("failed to update base price of product %s: %w", id, err)
	}
	return nil
}

func (s *PriceStore) ListProducts(ctx context.Context, params utils.PaginationParams) ([]models.Product, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Product{})
	if params.Search != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(params.Search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "title", "base_price"})
	query = utils.ApplyPagination(query, params)

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, total, nil
}

// StockLevels reads stock for each query, keyed by StockQuery.Key. A variant
// row wins over the product row; queries without a parsable row are
// unlimited and absent from the result.
func (s *PriceStore) StockLevels(ctx context.Context, items []StockQuery) (map[string]int, error) {
	keys := make([]models.ContentKey, 0, len(items)*2)
	for _, q := range items {
		keys = append(keys, models.ProductContentKey(q.ProductID, models.FieldStock))
		if q.Variant != nil {
			keys = append(keys, models.ContentKeyFor(q.ProductID, q.Variant, models.FieldStock))
		}
	}

	contents, err := s.GetContents(ctx, keys)
	if err != nil {
		return nil, err
	}

	levels := make(map[string]int, len(items))
	for _, q := range items {
		if q.Variant != nil {
			if n, ok := models.ParseStock(contents[q.Key()]); ok {
				levels[q.Key()] = n
				continue
			}
		}
		if n, ok := models.ParseStock(contents[models.ProductContentKey(q.ProductID, models.FieldStock).String()]); ok {
			levels[q.Key()] = n
		}
	}
	return levels, nil
}

type StockQuery struct {
	ProductID string
	Variant   *models.Variant
}

func (q StockQuery) Key() string {
	return models.ContentKeyFor(q.ProductID, q.Variant, models.FieldStock).String()
}

func variantColumns(v *models.Variant) (string, string) {
	if v == nil {
		return "", ""
	}
	return v.Label, v.Value
}
