package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, shippingAddress string, items []domain.LineItem) (*checkout.Result, error)
}

type CartSnapshotter interface {
	Items() []domain.LineItem
}

type CheckoutHandler struct {
	submitter OrderSubmitter
	cart      CartSnapshotter
	logger    *zap.Logger
}

func NewCheckoutHandler(submitter OrderSubmitter, cart CartSnapshotter, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		submitter: submitter,
		cart:      cart,
		logger:    logger,
	}
}

type SubmitOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
}

// POST /api/v1/checkout
// Orders confirmed by the API and orders queued locally get the same response.
func (h *CheckoutHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	snapshot := h.cart.Items()
	res, err := h.submitter.SubmitOrder(r.Context(), req.ShippingAddress, snapshot)
	switch {
	case errors.Is(err, checkout.ErrEmptyAddress):
		respondError(w, http.StatusBadRequest, "missing_shipping_address", "please enter a shipping address")
		return
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", "your cart is empty")
		return
	case err != nil:
		h.logger.Error("order submission failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "order_failed", "error processing the order")
		return
	}

	h.logger.Info("order submitted", zap.String("outcome", string(res.Outcome)), zap.Int("items", len(snapshot)))
	respondJSON(w, http.StatusCreated, MessageResponse{Message: "order created successfully"})
}
