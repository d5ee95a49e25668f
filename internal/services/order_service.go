// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Makeis02/landingmaj-sub003/internal/models"
	"github.com/Makeis02/landingmaj-sub003/internal/utils"
)

// OrderService owns the order state machine. Every transition is a single
// conditional update on (id, current status).
type OrderService struct {
	db         *gorm.DB
	promoCodes *PromoCodeService
	gateway    PaymentGateway
	events     EventPublisher
	log        *logrus.Entry
	now        func() time.Time
}

func NewOrderService(db *gorm.DB, promoCodes *PromoCodeService, gateway PaymentGateway, events EventPublisher) *OrderService {
	if events == nil {
		events = LogEventPublisher{}
	}
	return &OrderService{
		db:         db,
		promoCodes: promoCodes,
		gateway:    gateway,
		events:     events,
		log:        logrus.WithField("component", "orders"),
		now:        time.Now,
	}
}

// PaymentConfirmation carries what the processor reports for a session.
type PaymentConfirmation struct {
	SessionID       string
	OrderID         string
	PaymentIntentID string
	CustomerEmail   string
}

type RefundOrderRequest struct {
	Amount decimal.NullDecimal `json:"amount" validate:"omitempty,gt=0"`
	Reason string              `json:"reason" validate:"required,max=500"`
}

func (s *OrderService) CreatePending(ctx context.Context, order *models.Order) error {
	order.Status = models.OrderStatusPendingPayment
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	s.publish(ctx, order, "")
	return nil
}

func (s *OrderService) AttachSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPendingPayment).
		Update("stripe_session_id", sessionID)
	if res.Error != nil {
		return fmt.Errorf("failed to attach session to order %s: %w", orderID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// MarkPaid moves a pending order to paid and redeems its promo code. For
// orders already paid (or further) only the redemption is retried, which is a
// no-op once recorded. A redemption failure is returned so the confirmation
// gets redelivered.
func (s *OrderService) MarkPaid(ctx context.Context, conf PaymentConfirmation) (*models.Order, error) {
	order, err := s.findForConfirmation(ctx, conf)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.OrderStatusPaid, models.OrderStatusFulfilled, models.OrderStatusRefunded:
		s.log.WithField("order_id", order.ID).Debug("Order already paid, ignoring confirmation")
		if err := s.redeemPromo(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	}

	now := s.now()
	updates := map[string]interface{}{
		"paid_at":                  now,
		"stripe_payment_intent_id": conf.PaymentIntentID,
	}
	// the session opened at checkout stays the order's session
	if conf.SessionID != "" && order.StripeSessionID == "" {
		updates["stripe_session_id"] = conf.SessionID
	}
	if conf.CustomerEmail != "" && order.CustomerEmail == "" {
		updates["customer_email"] = conf.CustomerEmail
	}

	if err := s.transition(ctx, order, models.OrderStatusPaid, updates); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// a concurrent confirmation may have won the race
			if fresh, ferr := s.GetOrder(ctx, order.ID); ferr == nil && fresh.Status == models.OrderStatusPaid {
				if err := s.redeemPromo(ctx, fresh); err != nil {
					return nil, err
				}
				return fresh, nil
			}
		}
		return nil, err
	}
	order.PaidAt = &now
	order.StripePaymentIntentID = conf.PaymentIntentID

	s.log.WithFields(logrus.Fields{"order_id": order.ID, "total": order.Total.String()}).Info("Order paid")

	if err := s.redeemPromo(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// redeemPromo records the promo code usage of a paid order. An exhausted code
// is honoured and only logged.
func (s *OrderService) redeemPromo(ctx context.Context, order *models.Order) error {
	if order.PromoCodeID == nil || s.promoCodes == nil {
		return nil
	}

	_, err := s.promoCodes.RecordUsage(ctx, *order.PromoCodeID, order.ID, order.Discount)
	switch {
	case errors.Is(err, ErrPromoCodeExhausted):
		s.log.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"promo_code": order.PromoCode,
		}).Warn("Promo code exhausted at payment time, discount honoured")
		return nil
	case err != nil:
		s.log.WithError(err).WithField("order_id", order.ID).Error("Failed to record promo code usage")
		return fmt.Errorf("failed to redeem promo code for order %s: %w", order.ID, err)
	}
	return nil
}

// HandleWebhook applies a verified processor event. Unknown event types are
// acknowledged without effect.
func (s *OrderService) HandleWebhook(ctx context.Context, event *WebhookEvent) error {
	conf := PaymentConfirmation{
		SessionID:       event.SessionID,
		OrderID:         event.OrderID,
		PaymentIntentID: event.PaymentIntentID,
		CustomerEmail:   event.CustomerEmail,
	}
	log := s.log.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"session_id": event.SessionID,
	})

	var err error
	switch event.Type {
	case EventCheckoutCompleted:
		_, err = s.MarkPaid(ctx, conf)
	case EventCheckoutExpired:
		_, err = s.MarkExpired(ctx, conf)
	default:
		log.Debug("Ignoring webhook event")
		return nil
	}

	if errors.Is(err, ErrOrderNotFound) {
		log.Warn("Webhook event for unknown order")
		return nil
	}
	return err
}

// MarkExpired expires a pending order. Orders in any other state are left
// alone.
func (s *OrderService) MarkExpired(ctx context.Context, conf PaymentConfirmation) (*models.Order, error) {
	order, err := s.findForConfirmation(ctx, conf)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPendingPayment {
		return order, nil
	}

	if err := s.expire(ctx, order); err != nil && !errors.Is(err, ErrInvalidTransition) {
		return nil, err
	}
	return order, nil
}

// ExpireStalePending expires pending orders created more than olderThan ago.
func (s *OrderService) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)

	var stale []models.Order
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderStatusPendingPayment, cutoff).
		Limit(500).
		Find(&stale).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list stale orders: %w", err)
	}

	expired := 0
	for i := range stale {
		if err := s.expire(ctx, &stale[i]); err != nil {
			if !errors.Is(err, ErrInvalidTransition) {
				return expired, err
			}
			continue
		}
		expired++
	}

	if expired > 0 {
		s.log.WithField("count", expired).Info("Stale pending orders expired")
	}
	return expired, nil
}

func (s *OrderService) expire(ctx context.Context, order *models.Order) error {
	now := s.now()
	if err := s.transition(ctx, order, models.OrderStatusExpired, map[string]interface{}{"expired_at": now}); err != nil {
		return err
	}
	order.ExpiredAt = &now
	return nil
}

func (s *OrderService) MarkFulfilled(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.transition(ctx, order, models.OrderStatusFulfilled, map[string]interface{}{"fulfilled_at": now}); err != nil {
		return nil, err
	}
	order.FulfilledAt = &now
	return order, nil
}

// Refund refunds a paid order through the processor, fully or partially,
// then marks it refunded.
func (s *OrderService) Refund(ctx context.Context, id uuid.UUID, req *RefundOrderRequest) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(models.OrderStatusRefunded) {
		return nil, ErrInvalidTransition
	}

	var amount *decimal.Decimal
	if req.Amount.Valid {
		if req.Amount.Decimal.GreaterThan(order.Total) {
			return nil, fmt.Errorf("%w: refund amount exceeds order total", ErrValidation)
		}
		amount = &req.Amount.Decimal
	}

	if order.StripePaymentIntentID != "" && s.gateway != nil {
		if _, err := s.gateway.Refund(ctx, order.StripePaymentIntentID, amount); err != nil {
			return nil, err
		}
	}

	now := s.now()
	updates := map[string]interface{}{"refunded_at": now, "refund_reason": req.Reason}
	if err := s.transition(ctx, order, models.OrderStatusRefunded, updates); err != nil {
		return nil, err
	}
	order.RefundedAt = &now
	order.RefundReason = req.Reason
	return order, nil
}

// transition applies updates and the new status only if the row still holds
// order.Status.
func (s *OrderService) transition(ctx context.Context, order *models.Order, to models.OrderStatus, updates map[string]interface{}) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updates["status"] = to
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, from).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s is no longer %s", ErrInvalidTransition, order.ID, from)
	}

	order.Status = to
	s.publish(ctx, order, from)
	return nil
}

func (s *OrderService) publish(ctx context.Context, order *models.Order, previous models.OrderStatus) {
	if err := s.events.PublishOrderEvent(ctx, newOrderEvent(order, previous)); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"status":   order.Status,
		}).Warn("Failed to publish order event")
	}
}

func (s *OrderService) findForConfirmation(ctx context.Context, conf PaymentConfirmation) (*models.Order, error) {
	if conf.SessionID != "" {
		order, err := s.GetOrderBySession(ctx, conf.SessionID)
		if err == nil || !errors.Is(err, ErrOrderNotFound) {
			return order, err
		}
	}
	if conf.OrderID != "" {
		id, err := uuid.Parse(conf.OrderID)
		if err != nil {
			return nil, ErrOrderNotFound
		}
		return s.GetOrder(ctx, id)
	}
	return nil, ErrOrderNotFound
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("id = ?", id).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order %s: %w", id, err)
	}
	return &order, nil
}

func (s *OrderService) GetOrderBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("stripe_session_id = ?", sessionID).Take(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read order for session: %w", err)
	}
	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Search != "" {
		query = query.Where("customer_email LIKE ?", "%"+params.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "total", "status", "paid_at"})
	query = utils.ApplyPagination(query, params)

	var orders []models.Order
	if err := query.Preload("Items").Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, total, nil
}
