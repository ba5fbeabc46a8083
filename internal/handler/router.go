package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/nftmarket/internal/service"
)

// callerHeader carries the address of the account making a mutating call.
const callerHeader = "X-Caller"

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	marketSvc *service.MarketplaceService,
	assetSvc *service.AssetService,
	webhookSvc *service.WebhookService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	listingH := NewListingHandler(marketSvc)
	proceedsH := NewProceedsHandler(marketSvc)
	assetH := NewAssetHandler(assetSvc)
	webhookH := NewWebhookHandler(webhookSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/stats", listingH.Stats)

	// Dev registry and wallet.
	r.Post("/collections/{collection}/tokens", assetH.Mint)
	r.Post("/collections/{collection}/tokens/{token_id}/approve", assetH.Approve)
	r.Get("/collections/{collection}/tokens/{token_id}/owner", assetH.OwnerOf)
	r.Get("/accounts/{address}/balance", assetH.Balance)
	r.Post("/accounts/{address}/fund", assetH.Fund)

	// Listing routes.
	r.Post("/listings", listingH.List)
	r.Get("/listings/{collection}/{token_id}", listingH.Get)
	r.Patch("/listings/{collection}/{token_id}", listingH.Update)
	r.Delete("/listings/{collection}/{token_id}", listingH.Cancel)
	r.Post("/listings/{collection}/{token_id}/buy", listingH.Buy)
	r.Get("/collections/{collection}/listings", listingH.ByCollection)
	r.Get("/collections/{collection}/floor", listingH.Floor)
	r.Get("/activity", listingH.Activity)

	// Proceeds routes.
	r.Get("/proceeds/{seller}", proceedsH.Get)
	r.Post("/proceeds/withdraw", proceedsH.Withdraw)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			}
			if caller := r.Header.Get(callerHeader); caller != "" {
				attrs = append(attrs, slog.String("caller", caller))
			}
			logger.Info("request", attrs...)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
