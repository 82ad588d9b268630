package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/middleware"
)

// CatalogHandlers holds dependencies for product and category handlers.
// Listing and reading are public; the storefront UI calls these without
// a token.
type CatalogHandlers struct {
	catalog catalog.Repository
}

// NewCatalogHandlers creates a new CatalogHandlers instance.
func NewCatalogHandlers(cat catalog.Repository) *CatalogHandlers {
	return &CatalogHandlers{catalog: cat}
}

// ListProducts returns active products, optionally filtered by category.
// GET /products?category={id}
func (h *CatalogHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.catalog.ListProducts(ctx, r.URL.Query().Get("category"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list products", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list products")
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// GetProduct returns a product by ID.
// GET /products/{id}
func (h *CatalogHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, err := h.catalog.GetProduct(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get product", "product_id", r.PathValue("id"), "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListCategories returns all categories.
// GET /categories
func (h *CatalogHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list categories", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []*catalog.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

// CategoryProducts returns the active products in one category.
// GET /categories/{id}/products
func (h *CatalogHandlers) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.PathValue("id")
	if _, err := h.catalog.GetCategory(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrCategoryNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "category not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get category", "category_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load category")
		return
	}

	products, err := h.catalog.ListProducts(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list category products", "category_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list products")
		return
	}
	if products == nil {
		products = []*catalog.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}
