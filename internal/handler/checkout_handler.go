package handler

import (
	"net/http"
	"strings"

	"hq-entitlements/internal/model"
	"hq-entitlements/internal/service"

	"github.com/rs/zerolog"
)

const checkoutOrdersPath = "/api/checkout/orders/"

// CheckoutHandler receives completed purchases from the checkout flow.
type CheckoutHandler struct {
	service service.EntitlementService
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.EntitlementService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Create handles POST /api/checkout/orders requests.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	var req model.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, model.CheckoutResponse{
		OrderID:      order.OrderID,
		DownloadCode: order.DownloadCode,
		DownloadLink: order.DownloadLink,
	})
}

// GetByID handles GET /api/checkout/orders/{id} requests.
func (h *CheckoutHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	orderID := strings.TrimPrefix(r.URL.Path, checkoutOrdersPath)
	if orderID == "" || orderID == r.URL.Path || strings.Contains(orderID, "/") {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "order ID is required", h.logger)
		return
	}

	order, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}
