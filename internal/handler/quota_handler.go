package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type QuotaHandler struct {
	quotaService *service.StorageQuotaService
	verifier     *auth.Verifier
}

func NewQuotaHandler(quotaService *service.StorageQuotaService, verifier *auth.Verifier) *QuotaHandler {
	return &QuotaHandler{
		quotaService: quotaService,
		verifier:     verifier,
	}
}

func (h *QuotaHandler) GetQuota(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	info, err := h.quotaService.GetQuotaInfo(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type updateLimitRequest struct {
	NewLimit int64 `json:"new_limit"`
}

func (h *QuotaHandler) UpdateLimit(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	if err := h.quotaService.UpdateQuotaLimit(r.Context(), accountID, req.NewLimit); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Recalculate сверяет счетчик занятого места с фактической суммой версий
func (h *QuotaHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	used, err := h.quotaService.RecalculateUsedSpace(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"used_bytes": used})
}
