package router

import (
	"net/http"
	"strings"

	"hq-entitlements/internal/handler"
	"hq-entitlements/internal/middleware"

	"github.com/rs/zerolog"
)

// AdminPrefix is the path prefix guarded by the API key.
const AdminPrefix = "/api/admin/"

// New creates a new HTTP router with all routes and middleware configured.
func New(
	checkoutHandler *handler.CheckoutHandler,
	downloadHandler *handler.DownloadHandler,
	adminHandler *handler.AdminHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	// Checkout: create on the collection, read on a member.
	checkoutRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/checkout/orders" || r.URL.Path == "/api/checkout/orders/" {
			checkoutHandler.Create(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/checkout/orders/") {
			checkoutHandler.GetByID(w, r)
			return
		}
		http.NotFound(w, r)
	}
	mux.HandleFunc("/api/checkout/orders", checkoutRouteHandler)
	mux.HandleFunc("/api/checkout/orders/", checkoutRouteHandler)

	mux.HandleFunc("/api/download/verify", downloadHandler.Verify)
	mux.HandleFunc("/api/download/redeem", downloadHandler.Redeem)

	mux.HandleFunc(AdminPrefix+"orders", adminHandler.ListOrders)
	mux.HandleFunc(AdminPrefix+"orders/mark-used", adminHandler.MarkUsed)
	mux.HandleFunc(AdminPrefix+"persistence", adminHandler.Persistence)

	// Apply middleware in order: Recovery -> Logging -> CORS -> APIKeyAuth
	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(apiKey, AdminPrefix, logger)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	return handler
}
