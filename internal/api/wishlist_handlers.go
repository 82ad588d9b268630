package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/wishlist"
)

// WishlistHandlers holds dependencies for wishlist handlers.
type WishlistHandlers struct {
	wishlists wishlist.Repository
	catalog   catalog.Repository
}

// NewWishlistHandlers creates a new WishlistHandlers instance.
func NewWishlistHandlers(wishlists wishlist.Repository, cat catalog.Repository) *WishlistHandlers {
	return &WishlistHandlers{wishlists: wishlists, catalog: cat}
}

// List returns the caller's wishlist, newest first.
// GET /wishlist
func (h *WishlistHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	entries, err := h.wishlists.List(ctx, identity.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list wishlist", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list wishlist")
		return
	}
	if entries == nil {
		entries = []*wishlist.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"wishlist": entries})
}

// AddWishlistRequest is the request body for wishing a product.
type AddWishlistRequest struct {
	ProductID string `json:"product_id"`
}

// Add puts a product on the caller's wishlist.
// POST /wishlist
func (h *WishlistHandlers) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	var body AddWishlistRequest
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

	if _, err := h.catalog.GetProduct(ctx, body.ProductID); err != nil {
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

	if err := h.wishlists.Add(ctx, identity.UserID, body.ProductID); err != nil {
		if errors.Is(err, wishlist.ErrAlreadyListed) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "product already on wishlist")
			return
		}
		slog.ErrorContext(ctx, "failed to add wishlist entry", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to update wishlist")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Remove takes a product off the caller's wishlist.
// DELETE /wishlist/{id}
func (h *WishlistHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	if err := h.wishlists.Remove(ctx, identity.UserID, r.PathValue("id")); err != nil {
		if errors.Is(err, wishlist.ErrNotListed) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "product not on wishlist")
			return
		}
		slog.ErrorContext(ctx, "failed to remove wishlist entry", "user_id", identity.UserID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to update wishlist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
