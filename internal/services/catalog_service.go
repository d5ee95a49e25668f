// internal/services/catalog_service.go
package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

type UpsertProductRequest struct {
	ID        string          `json:"id" validate:"required,max=64"`
	Title     string          `json:"title" validate:"required,max=255"`
	BasePrice decimal.Decimal `json:"base_price" validate:"gte=0"`
	Currency  string          `json:"currency" validate:"omitempty,len=3"`
	Category  string          `json:"category" validate:"max=100"`
	ImageURL  string          `json:"image_url" validate:"omitempty,url"`
}

type SyncPriceRequest struct {
	Variant *models.Variant `json:"variant,omitempty"`
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
}

type SetStockRequest struct {
	Variant *models.Variant `json:"variant,omitempty"`
	Stock   int             `json:"stock" validate:"gte=0"`
}

// CatalogService maintains products, their catalog prices and stock.
type CatalogService struct {
	store    *PriceStore
	gateway  PaymentGateway
	storage  *StorageService
	currency string
	log      *logrus.Entry
}

func NewCatalogService(store *PriceStore, gateway PaymentGateway, storage *StorageService, currency string) *CatalogService {
	return &CatalogService{
		store:    store,
		gateway:  gateway,
		storage:  storage,
		currency: currency,
		log:      logrus.WithField("component", "catalog"),
	}
}

func (s *CatalogService) UpsertProduct(ctx context.Context, req *UpsertProductRequest) (*models.Product, error) {
	product := &models.Product{
		ID:        req.ID,
		Title:     req.Title,
		BasePrice: utils.RoundMoney(req.BasePrice),
		Currency:  req.Currency,
		Category:  req.Category,
		ImageURL:  req.ImageURL,
	}
	if product.Currency == "" {
		product.Currency = s.currency
	}
	if err := s.store.UpsertProduct(ctx, product); err != nil {
		return nil, err
	}
	return s.store.GetProduct(ctx, product.ID)
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *CatalogService) ListProducts(ctx context.Context, params utils.PaginationParams) ([]models.Product, int64, error) {
	return s.store.ListProducts(ctx, params)
}

// SyncBasePrice creates the processor catalog price of a product or variant
// under its stable lookup key and records it locally. The previous catalog
// price is retired on the processor.
func (s *CatalogService) SyncBasePrice(ctx context.Context, productID string, req *SyncPriceRequest) (*models.PriceRecord, error) {
	amount := utils.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	previous, err := s.store.ActivePriceRecord(ctx, productID, req.Variant, false)
	if err != nil {
		return nil, err
	}

	lookupKey := models.CatalogLookupKey(productID, req.Variant)
	priceID, err := s.gateway.CreatePrice(ctx, &PriceInput{
		ProductID:         productID,
		Amount:            amount,
		Currency:          s.currency,
		LookupKey:         lookupKey,
		TransferLookupKey: true,
	})
	if err != nil {
		return nil, err
	}

	label, value := variantColumns(req.Variant)
	rec := &models.PriceRecord{
		ProductID:     productID,
		StripePriceID: priceID,
		LookupKey:     lookupKey,
		VariantLabel:  label,
		VariantValue:  value,
		IsDiscount:    false,
		Active:        true,
		UnitAmount:    amount,
		Currency:      s.currency,
	}
	if err := s.store.UpsertPriceRecord(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.store.UpsertContent(ctx, models.ContentKeyFor(productID, req.Variant, models.FieldStripePriceID), priceID); err != nil {
		return nil, err
	}
	if err := s.store.UpsertContent(ctx, models.ContentKeyFor(productID, req.Variant, models.FieldPrice), amount.StringFixed(2)); err != nil {
		return nil, err
	}
	if req.Variant == nil {
		if err := s.store.SetProductBasePrice(ctx, productID, amount); err != nil {
			return nil, err
		}
	}

	if previous != nil && previous.StripePriceID != priceID {
		if err := s.gateway.DeactivatePrice(ctx, previous.StripePriceID); err != nil {
			s.log.WithError(err).WithField("price_id", previous.StripePriceID).Warn("Previous catalog price left active")
		}
	}

	s.log.WithFields(logrus.Fields{
		"product_id": productID,
		"variant":    req.Variant.String(),
		"amount":     amount.String(),
		"price_id":   priceID,
	}).Info("Catalog price synced")
	return rec, nil
}

func (s *CatalogService) SetStock(ctx context.Context, productID string, req *SetStockRequest) error {
	if req.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	return s.store.UpsertContent(ctx, models.ContentKeyFor(productID, req.Variant, models.FieldStock), strconv.Itoa(req.Stock))
}

// UploadProductImage stores the image and points the product at it. The
// stored file is removed again when the product cannot be updated.
func (s *CatalogService) UploadProductImage(ctx context.Context, productID string, file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	result, err := s.storage.UploadProductImage(ctx, productID, file, header)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetProductImage(ctx, productID, result.URL); err != nil {
		if derr := s.storage.DeleteFile(ctx, result.Key); derr != nil {
			s.log.WithError(derr).WithField("key", result.Key).Warn("Failed to remove orphaned image")
		}
		return nil, err
	}
	return result, nil
}
