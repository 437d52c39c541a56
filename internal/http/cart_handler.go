package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/client"
	"github.com/fjod/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartManager interface {
	AddItem(ctx context.Context, p domain.Product) error
	UpdateQuantity(ctx context.Context, productID int64, quantity int)
	RemoveItem(ctx context.Context, productID int64)
	Clear(ctx context.Context)
	Items() []domain.LineItem
	Total() decimal.Decimal
	TotalItems() int
}

type CartHandler struct {
	cart    CartManager
	catalog Catalog
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(cart CartManager, catalog Catalog, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cart:    cart,
		catalog: catalog,
		timeout: timeout,
		logger:  logger,
	}
}

// AddItemRequestDTO carries the product as the UI shows it. When name or stock
// is missing the product is looked up in the catalog.
type AddItemRequestDTO struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Stock     *int            `json:"stock"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponse struct {
	Items      []domain.LineItem `json:"items"`
	Total      string            `json:"total"`
	TotalItems int               `json:"total_items"`
}

type AddItemResponse struct {
	Message string       `json:"message"`
	Cart    CartResponse `json:"cart"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_price", "price must not be negative")
		return
	}
	if req.Stock != nil && *req.Stock < 0 {
		respondError(w, http.StatusBadRequest, "invalid_stock", "stock must not be negative")
		return
	}

	var product domain.Product
	if req.Name != "" && req.Stock != nil {
		product = domain.Product{
			ID:       req.ProductID,
			Name:     req.Name,
			Price:    req.Price,
			ImageURL: req.ImageURL,
			Stock:    *req.Stock,
		}
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()

		p, err := h.catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			handleAPIError(w, h.logger, err)
			return
		}
		product = *p
	}

	if err := h.cart.AddItem(r.Context(), product); err != nil {
		if errors.Is(err, cart.ErrOutOfStock) {
			respondError(w, http.StatusConflict, "out_of_stock", fmt.Sprintf("%s is out of stock", product.Name))
			return
		}
		h.logger.Error("failed to add item", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "could not add item")
		return
	}

	respondJSON(w, http.StatusCreated, AddItemResponse{
		Message: fmt.Sprintf("%s added to cart", product.Name),
		Cart:    h.snapshot(),
	})
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	h.cart.UpdateQuantity(r.Context(), productID, *req.Quantity)
	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	h.cart.RemoveItem(r.Context(), productID)
	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear(r.Context())
	respondJSON(w, http.StatusOK, h.snapshot())
}

func (h *CartHandler) snapshot() CartResponse {
	return CartResponse{
		Items:      h.cart.Items(),
		Total:      h.cart.Total().StringFixed(2),
		TotalItems: h.cart.TotalItems(),
	}
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func handleAPIError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, client.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "timeout", "storefront API timed out")
		return
	}
	logger.Warn("storefront API call failed", zap.Error(err))
	respondError(w, http.StatusBadGateway, "service_unavailable", "storefront API unavailable")
}
