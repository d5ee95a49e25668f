package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

type PromoCodeServiceTestSuite struct {
	suite.Suite
	env *testEnv
	ctx context.Context
}

func (s *PromoCodeServiceTestSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	s.ctx = context.Background()
}

func TestPromoCodeServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PromoCodeServiceTestSuite))
}

func (s *PromoCodeServiceTestSuite) TestApply_PercentageIgnoresGiftLines() {
	s.env.seedPromo(s.T(), "bienvenue10", models.PromoTypePercentage, "10")

	res, err := s.env.promoCodes.Apply(s.ctx, ApplyPromoRequest{
		Code: "BIENVENUE10",
		CartItems: []models.CartLineItem{
			line("l1", "prod_A", "40", 2),
			giftLine("g1", "prod_G"),
		},
		CartTotal: dec("80"),
	})
	s.Require().NoError(err)

	s.True(res.Valid)
	s.True(dec("8").Equal(res.Discount))
	s.True(dec("72").Equal(res.FinalTotal))
	s.Equal([]string{"l1"}, res.AppliedItems)
}

func (s *PromoCodeServiceTestSuite) TestApply_CodeIsCaseInsensitive() {
	s.env.seedPromo(s.T(), "Summer", models.PromoTypeFixed, "5")

	res, err := s.env.promoCodes.Apply(s.ctx, ApplyPromoRequest{
		Code:      "  summer ",
		CartItems: []models.CartLineItem{line("l1", "prod_A", "20", 1)},
	})
	s.Require().NoError(err)
	s.True(res.Valid)
	s.True(dec("5").Equal(res.Discount))
}

func (s *PromoCodeServiceTestSuite) TestApply_Rejections() {
	past := time.Now().Add(-time.Hour)
	s.env.seedPromo(s.T(), "OFF", models.PromoTypePercentage, "10", func(r *CreatePromoCodeRequest) {
		inactive := false
		r.IsActive = &inactive
	})
	s.env.seedPromo(s.T(), "OLD", models.PromoTypePercentage, "10", func(r *CreatePromoCodeRequest) {
		r.ExpiresAt = &past
	})
	used := s.env.seedPromo(s.T(), "USED", models.PromoTypePercentage, "10", func(r *CreatePromoCodeRequest) {
		r.UsageLimit = intPtr(1)
	})
	s.Require().NoError(s.env.db.Model(used).UpdateColumn("used_count", 1).Error)
	s.env.seedPromo(s.T(), "BIG", models.PromoTypeFixed, "10", func(r *CreatePromoCodeRequest) {
		r.MinimumAmount = dec("100")
	})
	s.env.seedPromo(s.T(), "FILTERS", models.PromoTypePercentage, "10", func(r *CreatePromoCodeRequest) {
		r.ApplicationType = models.ApplicationTypeSpecificProduct
		r.ProductIDs = []string{"prod_filter"}
	})

	cases := map[string]PromoRejectReason{
		"NOPE":    PromoReasonNotFound,
		"OFF":     PromoReasonInactive,
		"OLD":     PromoReasonExpired,
		"USED":    PromoReasonExhausted,
		"BIG":     PromoReasonMinimumNotMet,
		"FILTERS": PromoReasonNoEligibleItems,
	}
	for code, reason := range cases {
		res, err := s.env.promoCodes.Apply(s.ctx, ApplyPromoRequest{
			Code:      code,
			CartItems: []models.CartLineItem{line("l1", "prod_A", "40", 2)},
		})
		s.Require().NoError(err, code)
		s.False(res.Valid, code)
		s.Equal(reason, res.Reason, code)
		s.True(res.Discount.IsZero(), code)
		s.True(dec("80").Equal(res.FinalTotal), code)
	}
}

func (s *PromoCodeServiceTestSuite) TestEvaluate_Scopes() {
	s.env.seedProduct(s.T(), "prod_plant", "Anubias", "8", "plants")
	s.env.seedProduct(s.T(), "prod_food", "Flocons", "6", "food")

	s.env.seedPromo(s.T(), "PLANTS", models.PromoTypePercentage, "50", func(r *CreatePromoCodeRequest) {
		r.ApplicationType = models.ApplicationTypeCategory
		r.Categories = []string{"plants"}
	})
	s.env.seedPromo(s.T(), "FOOD", models.PromoTypeFixed, "4", func(r *CreatePromoCodeRequest) {
		r.ApplicationType = models.ApplicationTypeSpecificProduct
		r.ProductIDs = []string{"prod_food"}
	})

	items := []models.CartLineItem{
		line("l1", "prod_plant", "8", 2),
		line("l2", "prod_food", "6", 1),
	}

	eval, err := s.env.promoCodes.Evaluate(s.ctx, "PLANTS", items)
	s.Require().NoError(err)
	s.True(eval.Valid)
	s.Equal([]string{"l1"}, eval.EligibleItemIDs)
	s.True(dec("16").Equal(eval.EligibleSubtotal))
	s.True(dec("8").Equal(eval.Discount))

	eval, err = s.env.promoCodes.Evaluate(s.ctx, "FOOD", items)
	s.Require().NoError(err)
	s.True(eval.Valid)
	s.Equal([]string{"l2"}, eval.EligibleItemIDs)
	s.True(dec("4").Equal(eval.Discount))

	// eligibility follows line positions, not client ids
	dupes := []models.CartLineItem{
		line("same", "prod_plant", "8", 1),
		giftLine("gift", "prod_food"),
		line("same", "prod_food", "6", 1),
	}
	eval, err = s.env.promoCodes.Evaluate(s.ctx, "FOOD", dupes)
	s.Require().NoError(err)
	s.True(eval.Valid)
	s.Equal([]int{2}, eval.EligibleLines)
	s.True(dec("6").Equal(eval.EligibleSubtotal))
}

func (s *PromoCodeServiceTestSuite) TestEvaluate_Caps() {
	s.env.seedPromo(s.T(), "HALF", models.PromoTypePercentage, "50", func(r *CreatePromoCodeRequest) {
		r.MaximumDiscount.Decimal = dec("15")
		r.MaximumDiscount.Valid = true
	})
	s.env.seedPromo(s.T(), "HUGE", models.PromoTypeFixed, "500")

	items := []models.CartLineItem{line("l1", "prod_A", "40", 2)}

	eval, err := s.env.promoCodes.Evaluate(s.ctx, "HALF", items)
	s.Require().NoError(err)
	s.True(dec("15").Equal(eval.Discount))

	eval, err = s.env.promoCodes.Evaluate(s.ctx, "HUGE", items)
	s.Require().NoError(err)
	s.True(dec("80").Equal(eval.Discount), "fixed discount never exceeds the eligible subtotal")
}

func (s *PromoCodeServiceTestSuite) TestRecordUsage_IsIdempotentPerOrder() {
	promo := s.env.seedPromo(s.T(), "ONCE", models.PromoTypeFixed, "5", func(r *CreatePromoCodeRequest) {
		r.UsageLimit = intPtr(3)
	})
	orderID := uuid.New()

	recorded, err := s.env.promoCodes.RecordUsage(s.ctx, promo.ID, orderID, dec("5"))
	s.Require().NoError(err)
	s.True(recorded)

	recorded, err = s.env.promoCodes.RecordUsage(s.ctx, promo.ID, orderID, dec("5"))
	s.Require().NoError(err)
	s.False(recorded)

	reloaded, err := s.env.promoCodes.Get(s.ctx, promo.ID)
	s.Require().NoError(err)
	s.Equal(1, reloaded.UsedCount)
}

func (s *PromoCodeServiceTestSuite) TestRecordUsage_Exhausted() {
	promo := s.env.seedPromo(s.T(), "LAST", models.PromoTypeFixed, "5", func(r *CreatePromoCodeRequest) {
		r.UsageLimit = intPtr(1)
	})

	_, err := s.env.promoCodes.RecordUsage(s.ctx, promo.ID, uuid.New(), dec("5"))
	s.Require().NoError(err)

	_, err = s.env.promoCodes.RecordUsage(s.ctx, promo.ID, uuid.New(), dec("5"))
	s.ErrorIs(err, ErrPromoCodeExhausted)

	var claims int64
	s.Require().NoError(s.env.db.Model(&models.PromoCodeUsage{}).Where("promo_code_id = ?", promo.ID).Count(&claims).Error)
	s.Equal(int64(1), claims, "rejected claim is released")
}

func (s *PromoCodeServiceTestSuite) TestCreate_Validation() {
	_, err := s.env.promoCodes.Create(s.ctx, &CreatePromoCodeRequest{
		Code: "TOOMUCH", Type: models.PromoTypePercentage, Value: dec("150"),
	})
	s.ErrorIs(err, ErrValidation)

	_, err = s.env.promoCodes.Create(s.ctx, &CreatePromoCodeRequest{
		Code: "NOPRODUCTS", Type: models.PromoTypeFixed, Value: dec("5"),
		ApplicationType: models.ApplicationTypeSpecificProduct,
	})
	s.ErrorIs(err, ErrValidation)

	s.env.seedPromo(s.T(), "DUP", models.PromoTypeFixed, "5")
	_, err = s.env.promoCodes.Create(s.ctx, &CreatePromoCodeRequest{Code: "dup", Type: models.PromoTypeFixed, Value: dec("5")})
	s.ErrorIs(err, ErrPromoCodeExists)
}

func (s *PromoCodeServiceTestSuite) TestCreate_InactiveIsPersisted() {
	inactive := false
	promo, err := s.env.promoCodes.Create(s.ctx, &CreatePromoCodeRequest{
		Code: "later", Type: models.PromoTypeFixed, Value: dec("5"), IsActive: &inactive,
	})
	s.Require().NoError(err)
	s.Equal("LATER", promo.Code)

	reloaded, err := s.env.promoCodes.Get(s.ctx, promo.ID)
	s.Require().NoError(err)
	s.False(reloaded.IsActive)

	eval, err := s.env.promoCodes.Evaluate(s.ctx, "LATER", []models.CartLineItem{line("l1", "prod_A", "50", 1)})
	s.Require().NoError(err)
	s.False(eval.Valid)
	s.Equal(PromoReasonInactive, eval.Reason)
	s.True(eval.Discount.IsZero())
}

func (s *PromoCodeServiceTestSuite) TestUpdate_KeepsUsedCount() {
	promo := s.env.seedPromo(s.T(), "KEEP", models.PromoTypeFixed, "5")
	_, err := s.env.promoCodes.RecordUsage(s.ctx, promo.ID, uuid.New(), dec("5"))
	s.Require().NoError(err)

	desc := "updated"
	updated, err := s.env.promoCodes.Update(s.ctx, promo.ID, &UpdatePromoCodeRequest{Description: &desc})
	s.Require().NoError(err)
	s.Equal("updated", updated.Description)

	reloaded, err := s.env.promoCodes.Get(s.ctx, promo.ID)
	s.Require().NoError(err)
	s.Equal(1, reloaded.UsedCount)
	s.Equal("updated", reloaded.Description)
}

func (s *PromoCodeServiceTestSuite) TestDeactivate() {
	promo := s.env.seedPromo(s.T(), "STOP", models.PromoTypeFixed, "5")
	s.Require().NoError(s.env.promoCodes.Deactivate(s.ctx, promo.ID))

	eval, err := s.env.promoCodes.Evaluate(s.ctx, "STOP", []models.CartLineItem{line("l1", "prod_A", "20", 1)})
	s.Require().NoError(err)
	s.Equal(PromoReasonInactive, eval.Reason)

	s.ErrorIs(s.env.promoCodes.Deactivate(s.ctx, uuid.New()), ErrPromoCodeNotFound)
}

// Two orders racing for the last use of a code: exactly one wins.
func TestRecordUsage_SingleRemainingUse(t *testing.T) {
	env := newTestEnv(t)
	promo := env.seedPromo(t, "RACE", models.PromoTypeFixed, "5", func(r *CreatePromoCodeRequest) {
		r.UsageLimit = intPtr(1)
	})

	const racers = 8
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.promoCodes.RecordUsage(context.Background(), promo.ID, uuid.New(), dec("5"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, exhausted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrPromoCodeExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, exhausted)

	reloaded, err := env.promoCodes.Get(context.Background(), promo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.UsedCount)
}
