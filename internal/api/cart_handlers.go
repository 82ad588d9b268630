package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kavexa/storefront/internal/cart"
	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/middleware"
)

// CartHandlers holds dependencies for shopping cart handlers. Prices on
// cart lines are snapshots taken from the catalog at add time.
type CartHandlers struct {
	carts   cart.Store
	catalog catalog.Repository
}

// NewCartHandlers creates a new CartHandlers instance.
func NewCartHandlers(carts cart.Store, cat catalog.Repository) *CartHandlers {
	return &CartHandlers{carts: carts, catalog: cat}
}

// Get returns the caller's cart. A missing cart reads as an empty one.
// GET /cart
func (h *CartHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	c, err := h.carts.Get(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			writeJSON(w, http.StatusOK, &cart.Cart{UserID: identity.UserID, Items: []cart.Item{}})
			return
		}
		slog.ErrorContext(ctx, "failed to load cart", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddItemRequest is the request body for adding a product to the cart.
type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AddItem puts a product in the cart, merging quantity into an existing
// line. The unit price is snapshotted from the catalog.
// POST /cart/items
func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var body AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if body.ProductID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "product_id is required")
		return
	}
	if body.Quantity <= 0 {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "quantity must be positive")
		return
	}

	product, err := h.catalog.GetProduct(ctx, body.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get product", "product_id", body.ProductID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load product")
		return
	}
	if !product.InStock(body.Quantity) {
		ctx = middleware.SetErrorCode(ctx, ErrCodeInsufficientStock)
		WriteError(w, ctx, http.StatusConflict, ErrCodeInsufficientStock, "insufficient stock")
		return
	}

	c, err := h.carts.Get(ctx, identity.UserID)
	if err != nil {
		if !errors.Is(err, cart.ErrCartNotFound) {
			slog.ErrorContext(ctx, "failed to load cart", "user_id", identity.UserID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load cart")
			return
		}
		c = &cart.Cart{UserID: identity.UserID}
	}

	c.Upsert(cart.Item{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Currency:  product.Currency,
		Quantity:  body.Quantity,
	})

	if err := h.carts.Save(ctx, c); err != nil {
		slog.ErrorContext(ctx, "failed to save cart", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to save cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateItemRequest is the request body for changing a line's quantity.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem replaces the quantity for a cart line.
// PUT /cart/items/{id}
func (h *CartHandlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var body UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	c, err := h.carts.Get(ctx, identity.UserID)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "cart not found")
		return
	}

	if err := c.SetQuantity(r.PathValue("id"), body.Quantity); err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidQuantity):
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "quantity must be positive")
		case errors.Is(err, cart.ErrItemNotFound):
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "cart item not found")
		default:
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to update cart")
		}
		return
	}

	if err := h.carts.Save(ctx, c); err != nil {
		slog.ErrorContext(ctx, "failed to save cart", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to save cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveItem deletes a cart line.
// DELETE /cart/items/{id}
func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	c, err := h.carts.Get(ctx, identity.UserID)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "cart not found")
		return
	}

	if err := c.Remove(r.PathValue("id")); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "cart item not found")
		return
	}

	if err := h.carts.Save(ctx, c); err != nil {
		slog.ErrorContext(ctx, "failed to save cart", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to save cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Clear empties the caller's cart.
// DELETE /cart
func (h *CartHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	if err := h.carts.Delete(ctx, identity.UserID); err != nil {
		slog.ErrorContext(ctx, "failed to clear cart", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to clear cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
