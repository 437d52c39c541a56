package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderHistory interface {
	ListOrders(ctx context.Context) ([]domain.RemoteOrder, error)
	GetOrder(ctx context.Context, orderID string) (*domain.RemoteOrder, error)
}

type PendingOrders interface {
	List(ctx context.Context) ([]domain.PendingOrder, error)
}

type OrdersHandler struct {
	history OrderHistory
	pending PendingOrders
	timeout time.Duration
	logger  *zap.Logger
}

func NewOrdersHandler(history OrderHistory, pending PendingOrders, timeout time.Duration, logger *zap.Logger) *OrdersHandler {
	return &OrdersHandler{
		history: history,
		pending: pending,
		timeout: timeout,
		logger:  logger,
	}
}

type OrdersResponse struct {
	Orders []domain.RemoteOrder `json:"orders"`
}

type PendingOrdersResponse struct {
	Orders []domain.PendingOrder `json:"orders"`
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.history.ListOrders(ctx)
	if err != nil {
		handleAPIError(w, h.logger, err)
		return
	}
	if orders == nil {
		orders = []domain.RemoteOrder{}
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: orders})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.history.GetOrder(ctx, orderID)
	if err != nil {
		handleAPIError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders/pending
func (h *OrdersHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	orders, err := h.pending.List(r.Context())
	if err != nil {
		h.logger.Error("failed to read pending orders", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not read pending orders")
		return
	}
	respondJSON(w, http.StatusOK, PendingOrdersResponse{Orders: orders})
}
