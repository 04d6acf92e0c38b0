package handler

import (
	"net/http"
	"strconv"
	"strings"

	"hq-entitlements/internal/model"
	"hq-entitlements/internal/redemption"
	"hq-entitlements/internal/service"

	"github.com/rs/zerolog"
)

// AdminOrder is one row of the admin order listing.
type AdminOrder struct {
	model.Order
	ImageCount int    `json:"imageCount"`
	State      string `json:"state"`
}

// ListOrdersResponse is a page of orders plus a summary over all of them.
type ListOrdersResponse struct {
	Summary model.SalesSummary `json:"summary"`
	Orders  []AdminOrder       `json:"orders"`
}

func newAdminOrder(o *model.Order) AdminOrder {
	return AdminOrder{Order: *o, ImageCount: len(o.Items), State: redemption.StateOf(o).String()}
}

// AdminHandler serves operator endpoints. Authentication is applied by
// the router.
type AdminHandler struct {
	service service.EntitlementService
	logger  zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service service.EntitlementService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With().Str("handler", "admin").Logger(),
	}
}

// ListOrders handles GET /api/admin/orders requests with pagination. The
// summary always covers every order, not just the page.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	limit, ok := h.queryInt(w, r, "limit", 50)
	if !ok {
		return
	}
	offset, ok := h.queryInt(w, r, "offset", 0)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if offset > len(orders) {
		offset = len(orders)
	}
	end := len(orders)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	page := make([]AdminOrder, 0, end-offset)
	for i := range orders[offset:end] {
		page = append(page, newAdminOrder(&orders[offset+i]))
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(len(orders)))
	writeJSON(w, http.StatusOK, ListOrdersResponse{
		Summary: model.Summarize(orders),
		Orders:  page,
	})
}

// MarkUsed handles POST /api/admin/orders/mark-used requests.
func (h *AdminHandler) MarkUsed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	var req model.MarkUsedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "code is required", h.logger)
		return
	}

	order, err := h.service.MarkUsed(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	h.logger.Info().Str("order_id", order.OrderID).Msg("download code revoked by operator")
	writeJSON(w, http.StatusOK, newAdminOrder(order))
}

// Persistence handles GET /api/admin/persistence requests.
func (h *AdminHandler) Persistence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, h.service.PersistenceStatus())
}

func (h *AdminHandler) queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid "+name+" parameter", h.logger)
		return 0, false
	}
	return v, true
}
