// internal/services/promo_code_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

var ErrValidation = errors.New("validation failed")

type PromoCodeService struct {
	db    *gorm.DB
	store *PriceStore
	log   *logrus.Entry
	now   func() time.Time
}

func NewPromoCodeService(db *gorm.DB, store *PriceStore) *PromoCodeService {
	return &PromoCodeService{
		db:    db,
		store: store,
		log:   logrus.WithField("component", "promo_codes"),
		now:   time.Now,
	}
}

type ApplyPromoRequest struct {
	Code      string                `json:"code" validate:"required,max=50"`
	CartItems []models.CartLineItem `json:"cartItems" validate:"dive"`
	CartTotal decimal.Decimal       `json:"cartTotal"`
}

type ApplyPromoResult struct {
	Valid        bool              `json:"valid"`
	Discount     decimal.Decimal   `json:"discount"`
	FinalTotal   decimal.Decimal   `json:"finalTotal"`
	AppliedItems []string          `json:"appliedItems"`
	Message      string            `json:"message"`
	Reason       PromoRejectReason `json:"reason,omitempty"`
}

// PromoEvaluation is the outcome of validating a code against payable lines.
type PromoEvaluation struct {
	PromoCode        *models.PromoCode
	Valid            bool
	Reason           PromoRejectReason
	Subtotal         decimal.Decimal
	EligibleSubtotal decimal.Decimal
	EligibleItemIDs  []string
	Discount         decimal.Decimal

	// EligibleLines indexes the eligible entries of the evaluated items.
	EligibleLines []int
}

// Err returns the rejection as an *InvalidPromoCodeError, nil when valid.
func (e *PromoEvaluation) Err(code string) error {
	if e.Valid {
		return nil
	}
	return &InvalidPromoCodeError{Code: models.NormalizePromoCode(code), Reason: e.Reason}
}

// Evaluate validates code against the payable lines of items. An unusable
// code yields Valid=false and a zero discount, never an error.
func (s *PromoCodeService) Evaluate(ctx context.Context, code string, items []models.CartLineItem) (*PromoEvaluation, error) {
	eval := &PromoEvaluation{Discount: decimal.Zero, EligibleSubtotal: decimal.Zero}

	var payable []int
	for i, item := range items {
		if item.IsPayable() {
			payable = append(payable, i)
			eval.Subtotal = eval.Subtotal.Add(item.LineTotal())
		}
	}

	promo, err := s.findByCode(ctx, code)
	if errors.Is(err, ErrPromoCodeNotFound) {
		eval.Reason = PromoReasonNotFound
		return eval, nil
	}
	if err != nil {
		return nil, err
	}
	eval.PromoCode = promo

	switch {
	case !promo.IsActive:
		eval.Reason = PromoReasonInactive
	case promo.IsExpired(s.now()):
		eval.Reason = PromoReasonExpired
	case promo.IsExhausted():
		eval.Reason = PromoReasonExhausted
	case eval.Subtotal.LessThan(promo.MinimumAmount):
		eval.Reason = PromoReasonMinimumNotMet
	}
	if eval.Reason != "" {
		return eval, nil
	}

	eligible, err := s.eligibleLines(ctx, promo, items, payable)
	if err != nil {
		return nil, err
	}
	for _, i := range eligible {
		eval.EligibleSubtotal = eval.EligibleSubtotal.Add(items[i].LineTotal())
		eval.EligibleItemIDs = append(eval.EligibleItemIDs, lineID(items[i]))
	}
	eval.EligibleLines = eligible
	if len(eligible) == 0 || !eval.EligibleSubtotal.IsPositive() {
		eval.Reason = PromoReasonNoEligibleItems
		return eval, nil
	}

	eval.Discount = computeDiscount(promo, eval.EligibleSubtotal)
	eval.Valid = true
	return eval, nil
}

// computeDiscount is min(rate or amount, maximum_discount, eligible subtotal)
// rounded to cents.
func computeDiscount(promo *models.PromoCode, eligibleSubtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch promo.Type {
	case models.PromoTypePercentage:
		discount = eligibleSubtotal.Mul(promo.Value).Div(decimal.NewFromInt(100))
	default:
		discount = promo.Value
	}

	if promo.MaximumDiscount.Valid && discount.GreaterThan(promo.MaximumDiscount.Decimal) {
		discount = promo.MaximumDiscount.Decimal
	}
	if discount.GreaterThan(eligibleSubtotal) {
		discount = eligibleSubtotal
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return utils.RoundMoney(discount)
}

// eligibleLines filters the payable indexes of items down to those the code
// applies to.
func (s *PromoCodeService) eligibleLines(ctx context.Context, promo *models.PromoCode, items []models.CartLineItem, payable []int) ([]int, error) {
	switch promo.ApplicationType {
	case models.ApplicationTypeSpecificProduct:
		var out []int
		for _, i := range payable {
			if promo.ProductIDs.Contains(items[i].ProductID) {
				out = append(out, i)
			}
		}
		return out, nil

	case models.ApplicationTypeCategory:
		ids := make([]string, 0, len(payable))
		for _, i := range payable {
			ids = append(ids, items[i].ProductID)
		}
		products, err := s.store.GetProducts(ctx, uniqueStrings(ids))
		if err != nil {
			return nil, err
		}

		var out []int
		for _, i := range payable {
			if p, ok := products[items[i].ProductID]; ok && p.Category != "" && promo.Categories.Contains(p.Category) {
				out = append(out, i)
			}
		}
		return out, nil

	default:
		return payable, nil
	}
}

// Apply previews a code against a cart.
func (s *PromoCodeService) Apply(ctx context.Context, req ApplyPromoRequest) (*ApplyPromoResult, error) {
	eval, err := s.Evaluate(ctx, req.Code, req.CartItems)
	if err != nil {
		return nil, err
	}

	if !req.CartTotal.IsZero() && !req.CartTotal.Equal(eval.Subtotal) {
		s.log.WithFields(logrus.Fields{
			"client_total":   req.CartTotal.String(),
			"computed_total": eval.Subtotal.String(),
		}).Debug("Client cart total differs from computed subtotal")
	}

	result := &ApplyPromoResult{
		Valid:        eval.Valid,
		Discount:     eval.Discount,
		FinalTotal:   eval.Subtotal.Sub(eval.Discount),
		AppliedItems: eval.EligibleItemIDs,
		Reason:       eval.Reason,
	}
	if result.AppliedItems == nil {
		result.AppliedItems = []string{}
	}
	return result, nil
}

// RecordUsage redeems the code for an order. The claim row makes a second
// call for the same order a no-op; the conditional increment makes the usage
// limit hold under concurrent redemptions. recorded is false when the order
// had already been recorded.
func (s *PromoCodeService) RecordUsage(ctx context.Context, promoCodeID, orderID uuid.UUID, discount decimal.Decimal) (bool, error) {
	db := s.db.WithContext(ctx)

	claim := &models.PromoCodeUsage{
		PromoCodeID:    promoCodeID,
		OrderID:        orderID,
		DiscountAmount: discount,
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(claim)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record promo code usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	upd := db.Model(&models.PromoCode{}).
		Where("id = ? AND is_active = ?", promoCodeID, true).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if upd.Error != nil || upd.RowsAffected == 0 {
		if err := db.Where("id = ?", claim.ID).Delete(&models.PromoCodeUsage{}).Error; err != nil {
			s.log.WithError(err).WithField("usage_id", claim.ID).Error("Failed to release promo code claim")
		}
		if upd.Error != nil {
			return false, fmt.Errorf("failed to increment promo code usage: %w", upd.Error)
		}
		return false, ErrPromoCodeExhausted
	}

	s.log.WithFields(logrus.Fields{
		"promo_code_id": promoCodeID,
		"order_id":      orderID,
		"discount":      discount.String(),
	}).Info("Promo code usage recorded")
	return true, nil
}

func (s *PromoCodeService) findByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	normalized := models.NormalizePromoCode(code)
	if normalized == "" {
		return nil, ErrPromoCodeNotFound
	}

	var promo models.PromoCode
	err := s.db.WithContext(ctx).Where("code = ?", normalized).Take(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPromoCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read promo code: %w", err)
	}
	return &promo, nil
}

type CreatePromoCodeRequest struct {
	Code            string                 `json:"code" validate:"required,promo_code"`
	Description     string                 `json:"description,omitempty" validate:"max=1000"`
	Type            models.PromoType       `json:"type" validate:"required,oneof=percentage fixed"`
	Value           decimal.Decimal        `json:"value" validate:"gt=0"`
	ApplicationType models.ApplicationType `json:"application_type" validate:"omitempty,oneof=all specific_product category"`
	ProductIDs      []string               `json:"product_ids,omitempty"`
	Categories      []string               `json:"categories,omitempty"`
	MinimumAmount   decimal.Decimal        `json:"minimum_amount" validate:"gte=0"`
	MaximumDiscount decimal.NullDecimal    `json:"maximum_discount" validate:"omitempty,gt=0"`
	UsageLimit      *int                   `json:"usage_limit" validate:"omitempty,min=1"`
	ExpiresAt       *time.Time             `json:"expires_at"`
	IsActive        *bool                  `json:"is_active"`
}

type UpdatePromoCodeRequest struct {
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=1000"`
	Value           decimal.NullDecimal    `json:"value" validate:"omitempty,gt=0"`
	ProductIDs      []string               `json:"product_ids,omitempty"`
	Categories      []string               `json:"categories,omitempty"`
	MinimumAmount   decimal.NullDecimal    `json:"minimum_amount" validate:"omitempty,gte=0"`
	MaximumDiscount decimal.NullDecimal    `json:"maximum_discount" validate:"omitempty,gt=0"`
	UsageLimit      *int                   `json:"usage_limit" validate:"omitempty,min=1"`
	ExpiresAt       *time.Time             `json:"expires_at"`
	IsActive        *bool                  `json:"is_active"`
	ApplicationType models.ApplicationType `json:"application_type" validate:"omitempty,oneof=all specific_product category"`
}

func (s *PromoCodeService) Create(ctx context.Context, req *CreatePromoCodeRequest) (*models.PromoCode, error) {
	promo := &models.PromoCode{
		Code:            req.Code,
		Description:     req.Description,
		Type:            req.Type,
		Value:           req.Value,
		ApplicationType: req.ApplicationType,
		ProductIDs:      models.StringList(req.ProductIDs),
		Categories:      models.StringList(req.Categories),
		MinimumAmount:   req.MinimumAmount,
		MaximumDiscount: req.MaximumDiscount,
		UsageLimit:      req.UsageLimit,
		IsActive:        true,
		ExpiresAt:       req.ExpiresAt,
	}
	if promo.ApplicationType == "" {
		promo.ApplicationType = models.ApplicationTypeAll
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}
	if err := validatePromoDefinition(promo); err != nil {
		return nil, err
	}

	if _, err := s.findByCode(ctx, promo.Code); err == nil {
		return nil, ErrPromoCodeExists
	} else if !errors.Is(err, ErrPromoCodeNotFound) {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(promo).Error; err != nil {
		return nil, fmt.Errorf("failed to create promo code: %w", err)
	}

	s.log.WithFields(logrus.Fields{"code": promo.Code, "type": promo.Type}).Info("Promo code created")
	return promo, nil
}

func (s *PromoCodeService) Update(ctx context.Context, id uuid.UUID, req *UpdatePromoCodeRequest) (*models.PromoCode, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		promo.Description = *req.Description
	}
	if req.Value.Valid {
		promo.Value = req.Value.Decimal
	}
	if req.ProductIDs != nil {
		promo.ProductIDs = models.StringList(req.ProductIDs)
	}
	if req.Categories != nil {
		promo.Categories = models.StringList(req.Categories)
	}
	if req.MinimumAmount.Valid {
		promo.MinimumAmount = req.MinimumAmount.Decimal
	}
	if req.MaximumDiscount.Valid {
		promo.MaximumDiscount = req.MaximumDiscount
	}
	if req.UsageLimit != nil {
		promo.UsageLimit = req.UsageLimit
	}
	if req.ExpiresAt != nil {
		promo.ExpiresAt = req.ExpiresAt
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}
	if req.ApplicationType != "" {
		promo.ApplicationType = req.ApplicationType
	}
	if err := validatePromoDefinition(promo); err != nil {
		return nil, err
	}

	// used_count is owned by RecordUsage
	if err := s.db.WithContext(ctx).Omit("used_count").Save(promo).Error; err != nil {
		return nil, fmt.Errorf("failed to update promo code: %w", err)
	}
	return promo, nil
}

func (s *PromoCodeService) Deactivate(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.PromoCode{}).Where("id = ?", id).UpdateColumn("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to deactivate promo code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPromoCodeNotFound
	}
	return nil
}

func (s *PromoCodeService) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&promo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPromoCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read promo code: %w", err)
	}
	return &promo, nil
}

func (s *PromoCodeService) List(ctx context.Context, params utils.PaginationParams) ([]models.PromoCode, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.PromoCode{})
	if params.Search != "" {
		query = query.Where("code LIKE ?", "%"+models.NormalizePromoCode(params.Search)+"%")
	}
	switch params.Status {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count promo codes: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "code", "used_count", "expires_at"})
	query = utils.ApplyPagination(query, params)

	var codes []models.PromoCode
	if err := query.Find(&codes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch promo codes: %w", err)
	}
	return codes, total, nil
}

func validatePromoDefinition(p *models.PromoCode) error {
	if p.Type == models.PromoTypePercentage && p.Value.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: percentage value cannot exceed 100", ErrValidation)
	}
	if p.ApplicationType == models.ApplicationTypeSpecificProduct && len(p.ProductIDs) == 0 {
		return fmt.Errorf("%w: product_ids required for specific_product codes", ErrValidation)
	}
	if p.ApplicationType == models.ApplicationTypeCategory && len(p.Categories) == 0 {
		return fmt.Errorf("%w: categories required for category codes", ErrValidation)
	}
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	return nil
}

func lineID(item models.CartLineItem) string {
	if item.ID != "" {
		return item.ID
	}
	return item.ProductID
}
