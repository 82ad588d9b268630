package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kavexa/storefront/internal/cart"
	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/order"
	"github.com/kavexa/storefront/internal/payment"
	"github.com/kavexa/storefront/internal/validate"
)

// OrderHandlers holds dependencies for order-related HTTP handlers.
type OrderHandlers struct {
	orders   order.Repository
	payments payment.Repository
	carts    cart.Store
	catalog  catalog.Repository
}

// NewOrderHandlers creates a new OrderHandlers instance.
func NewOrderHandlers(orders order.Repository, payments payment.Repository, carts cart.Store, cat catalog.Repository) *OrderHandlers {
	return &OrderHandlers{
		orders:   orders,
		payments: payments,
		carts:    carts,
		catalog:  cat,
	}
}

// CreateOrderRequest is the request body for checking out the cart into
// an order. The order total is computed from the cart, never trusted
// from the client.
type CreateOrderRequest struct {
	Email           string `json:"email"`
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
}

// Create converts the caller's cart into a pending order, reserving
// stock for each line. The cart is cleared on success.
// POST /orders
func (h *OrderHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var body CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if body.Email == "" {
		body.Email = identity.Email
	}
	email, err := validate.Email(body.Email)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "a valid email is required")
		return
	}
	if body.ShippingAddress == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "shipping_address is required")
		return
	}
	if body.BillingAddress == "" {
		body.BillingAddress = body.ShippingAddress
	}

	c, err := h.carts.Get(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "cart is empty")
			return
		}
		slog.ErrorContext(ctx, "failed to load cart", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load cart")
		return
	}
	if len(c.Items) == 0 {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "cart is empty")
		return
	}

	currency := c.Items[0].Currency

	// Reserve stock line by line; release everything on failure.
	var reserved []cart.Item
	for _, item := range c.Items {
		if err := h.catalog.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			for _, done := range reserved {
				if relErr := h.catalog.ReleaseStock(ctx, done.ProductID, done.Quantity); relErr != nil {
					slog.ErrorContext(ctx, "failed to release stock after aborted checkout",
						"product_id", done.ProductID, "error", relErr)
				}
			}
			if errors.Is(err, catalog.ErrInsufficientStock) {
				ctx = middleware.SetErrorCode(ctx, ErrCodeInsufficientStock)
				WriteError(w, ctx, http.StatusConflict, ErrCodeInsufficientStock, "insufficient stock for "+item.Name)
				return
			}
			slog.ErrorContext(ctx, "failed to reserve stock", "product_id", item.ProductID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to reserve stock")
			return
		}
		reserved = append(reserved, item)
	}

	ord := &order.Order{
		UserID:          identity.UserID,
		Email:           email,
		TotalAmount:     c.Total(),
		Currency:        currency,
		Status:          order.StatusPending,
		ShippingAddress: body.ShippingAddress,
		BillingAddress:  body.BillingAddress,
	}
	if err := h.orders.Create(ctx, ord); err != nil {
		slog.ErrorContext(ctx, "failed to create order", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create order")
		return
	}

	if err := h.carts.Delete(ctx, identity.UserID); err != nil {
		// Order exists; a stale cart is an annoyance, not a failure.
		slog.ErrorContext(ctx, "failed to clear cart after checkout",
			"user_id", identity.UserID, "order_id", ord.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, ord)
}

// Get returns an order by ID.
// GET /orders/{id}
func (h *OrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	ord, ok := h.loadOwnedOrder(w, r, identity)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ord)
}

// List returns the caller's orders.
// GET /orders
func (h *OrderHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	orders, err := h.orders.ListByUser(ctx, identity.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list orders", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list orders")
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

// Payments returns the payment attempt chain for an order, oldest first.
// GET /orders/{id}/payments
func (h *OrderHandlers) Payments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	ord, ok := h.loadOwnedOrder(w, r, identity)
	if !ok {
		return
	}

	attempts, err := h.payments.ListByOrder(ctx, ord.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list payments", "order_id", ord.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list payments")
		return
	}
	if attempts == nil {
		attempts = []*payment.Payment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": attempts})
}

// loadOwnedOrder fetches the order from the path and enforces ownership.
func (h *OrderHandlers) loadOwnedOrder(w http.ResponseWriter, r *http.Request, identity *Identity) (*order.Order, bool) {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "order id is required")
		return nil, false
	}

	ord, err := h.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "order not found")
			return nil, false
		}
		slog.ErrorContext(ctx, "failed to get order", "order_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load order")
		return nil, false
	}
	if ord.UserID != identity.UserID && !identity.IsAdmin() {
		ctx = middleware.SetErrorCode(ctx, ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "order belongs to another user")
		return nil, false
	}
	return ord, true
}
