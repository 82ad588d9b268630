package middleware

import (
	"context"
	"net/http"
)

// ResponseContextUpdater is implemented by response writers that can
// carry an updated request context back to outer middleware. Handlers
// derive a new context (e.g. via SetErrorCode) after the middleware
// chain has already captured the request, so the updated context has to
// travel through the writer.
type ResponseContextUpdater interface {
	UpdateContext(ctx context.Context)
}

// UpdateResponseContext propagates ctx to the response writer when the
// writer supports it. No-op otherwise.
func UpdateResponseContext(w http.ResponseWriter, ctx context.Context) {
	for {
		if u, ok := w.(ResponseContextUpdater); ok {
			u.UpdateContext(ctx)
			return
		}
		// Unwrap nested response writers
		unwrapper, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = unwrapper.Unwrap()
	}
}
