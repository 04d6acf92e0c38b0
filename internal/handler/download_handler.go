package handler

import (
	"net/http"
	"strings"

	"hq-entitlements/internal/model"
	"hq-entitlements/internal/service"

	"github.com/rs/zerolog"
)

// DownloadHandler serves the buyer-facing download page.
type DownloadHandler struct {
	service service.EntitlementService
	logger  zerolog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(service service.EntitlementService, logger zerolog.Logger) *DownloadHandler {
	return &DownloadHandler{
		service: service,
		logger:  logger.With().Str("handler", "download").Logger(),
	}
}

// Verify handles GET /api/download/verify?code= requests.
func (h *DownloadHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "download code is required", h.logger)
		return
	}

	order, err := h.service.GetOrderByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, model.NewDownloadView(order))
}

// Redeem handles POST /api/download/redeem requests. A code that was
// already used before the call is refused with 403.
func (h *DownloadHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeMethodNotAllowed, "method not allowed", h.logger)
		return
	}

	var req model.RedeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.ImageID) == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeMissingField, "code and imageId are required", h.logger)
		return
	}

	resp, err := h.service.Redeem(r.Context(), req.Code, req.ImageID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
