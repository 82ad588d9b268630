package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kavexa/storefront/internal/catalog"
	"github.com/kavexa/storefront/internal/middleware"
	"github.com/kavexa/storefront/internal/review"
	"github.com/kavexa/storefront/internal/validate"
)

// ReviewHandlers holds dependencies for product review handlers.
type ReviewHandlers struct {
	reviews review.Repository
	catalog catalog.Repository
}

// NewReviewHandlers creates a new ReviewHandlers instance.
func NewReviewHandlers(reviews review.Repository, cat catalog.Repository) *ReviewHandlers {
	return &ReviewHandlers{reviews: reviews, catalog: cat}
}

// ListByProduct returns the approved reviews for a product.
// GET /products/{id}/reviews
func (h *ReviewHandlers) ListByProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	productID := r.PathValue("id")
	if _, err := h.catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get product", "product_id", productID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load product")
		return
	}

	reviews, err := h.reviews.ListByProduct(ctx, productID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list reviews", "product_id", productID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []*review.Review{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// CreateReviewRequest is the request body for submitting a review.
type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Create submits a review for moderation.
// POST /products/{id}/reviews
func (h *ReviewHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity := GetIdentity(ctx)
	if identity == nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	productID := r.PathValue("id")
	if _, err := h.catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get product", "product_id", productID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to load product")
		return
	}

	var body CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	content, err := validate.ReviewContent(body.Content)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "invalid review content")
		return
	}

	rev := &review.Review{
		ProductID: productID,
		UserID:    identity.UserID,
		Rating:    body.Rating,
		Title:     validate.SanitizeHTML(body.Title),
		Content:   content,
	}
	if err := h.reviews.Create(ctx, rev); err != nil {
		switch {
		case errors.Is(err, review.ErrInvalidRating):
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "rating must be between 1 and 5")
		case errors.Is(err, review.ErrDuplicateReview):
			ctx = middleware.SetErrorCode(ctx, ErrCodeConflict)
			WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "you already reviewed this product")
		default:
			slog.ErrorContext(ctx, "failed to create review", "product_id", productID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to create review")
		}
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

// ModerateReviewRequest is the request body for a moderation decision.
type ModerateReviewRequest struct {
	Status review.Status `json:"status"`
}

// Moderate approves or rejects a pending review. Admin only.
// PUT /reviews/{id}
func (h *ReviewHandlers) Moderate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body ModerateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	if body.Status != review.StatusApproved && body.Status != review.StatusRejected {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "status must be approved or rejected")
		return
	}

	id := r.PathValue("id")
	if err := h.reviews.SetStatus(ctx, id, body.Status); err != nil {
		if errors.Is(err, review.ErrReviewNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "review not found")
			return
		}
		slog.ErrorContext(ctx, "failed to moderate review", "review_id", id, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to moderate review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
