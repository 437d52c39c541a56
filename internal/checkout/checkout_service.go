package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderCreator is the remote order API.
type OrderCreator interface {
	CreateOrder(ctx context.Context, shippingAddress string) (*domain.RemoteOrder, error)
}

// Cart is the part of the cart manager checkout needs.
type Cart interface {
	Clear(ctx context.Context)
}

// Publisher announces orders that were queued locally.
type Publisher interface {
	PublishPendingOrder(ctx context.Context, order *domain.PendingOrder) error
}

type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeQueued    Outcome = "queued"
)

type Result struct {
	Outcome      Outcome
	RemoteOrder  *domain.RemoteOrder
	PendingOrder *domain.PendingOrder
}

type Service struct {
	orders    OrderCreator
	cart      Cart
	pending   *PendingLog
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
	newID     func() (string, error)
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(orders OrderCreator, cart Cart, pending *PendingLog, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		orders:  orders,
		cart:    cart,
		pending: pending,
		logger:  logger.Named("checkout"),
		now:     time.Now,
		newID:   newOrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitOrder records an order for the given cart snapshot. The remote API gets one attempt;
// if it fails for any reason the order is queued locally instead. Either way the cart is
// cleared and the call succeeds. Validation and local queueing failures leave the cart untouched.
func (s *Service) SubmitOrder(ctx context.Context, shippingAddress string, items []domain.LineItem) (*Result, error) {
	address := strings.TrimSpace(shippingAddress)
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	payload, err := BuildPayload(address, items)
	if err != nil {
		return nil, err
	}

	// a started submission runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	result := &Result{}
	remote, err := s.orders.CreateOrder(ctx, address)
	if err == nil {
		result.Outcome = OutcomeConfirmed
		result.RemoteOrder = remote
		if remote != nil {
			s.logger.Info("order created remotely", zap.String("order_id", string(remote.ID)))
		}
	} else {
		s.logger.Warn("remote order creation failed, queueing locally", zap.Error(err))

		pending, errQueue := s.queue(ctx, payload)
		if errQueue != nil {
			s.logger.Error("failed to queue order locally", zap.Error(errQueue))
			return nil, fmt.Errorf("order was not recorded: %w", errQueue)
		}
		result.Outcome = OutcomeQueued
		result.PendingOrder = pending
	}

	s.cart.Clear(ctx)
	return result, nil
}

func (s *Service) queue(ctx context.Context, payload *domain.OrderPayload) (*domain.PendingOrder, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("generate order id failed: %w", err)
	}

	order := &domain.PendingOrder{
		ID:              id,
		ShippingAddress: payload.ShippingAddress,
		Items:           payload.Items,
		Total:           payload.Total,
		Status:          domain.OrderStatusPending,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.pending.Append(ctx, *order); err != nil {
		return nil, err
	}
	s.logger.Info("order queued locally", zap.String("order_id", order.ID), zap.String("total", order.Total.String()))

	if s.publisher != nil {
		if err := s.publisher.PublishPendingOrder(ctx, order); err != nil {
			s.logger.Warn("failed to publish queued order", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	return order, nil
}

// BuildPayload copies the order-relevant fields of each line item and computes the total.
func BuildPayload(shippingAddress string, items []domain.LineItem) (*domain.OrderPayload, error) {
	payload := &domain.OrderPayload{
		ShippingAddress: shippingAddress,
		Items:           make([]domain.OrderItem, 0, len(items)),
	}
	for _, it := range items {
		if it.ID <= 0 {
			return nil, fmt.Errorf("%w: missing product id", ErrInvalidLineItem)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: product %d has quantity %d", ErrInvalidLineItem, it.ID, it.Quantity)
		}
		if it.Price.IsNegative() {
			return nil, fmt.Errorf("%w: product %d has negative price", ErrInvalidLineItem, it.ID)
		}
		payload.Items = append(payload.Items, domain.OrderItem{
			ProductID: it.ID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}
	payload.Total = domain.Total(items)
	return payload, nil
}

// newOrderID returns a UUIDv7, which sorts by creation time.
func newOrderID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
