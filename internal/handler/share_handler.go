package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type ShareHandler struct {
	shareService *service.ShareService
	verifier     *auth.Verifier
}

func NewShareHandler(shareService *service.ShareService, verifier *auth.Verifier) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		verifier:     verifier,
	}
}

type grantRequest struct {
	SharedWithEmail string            `json:"shared_with_email"`
	Permission      domain.Permission `json:"permission"`
}

// Grant выдает грант на узел. Доступно только владельцу.
func (h *ShareHandler) Grant(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: node %s", domain.ErrNotFound, chi.URLParam(r, "id")))
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	if req.SharedWithEmail == "" {
		writeError(w, fmt.Errorf("%w: shared_with_email is required", domain.ErrInvalidOperation))
		return
	}

	share, err := h.shareService.Grant(r.Context(), accountID, nodeID, req.SharedWithEmail, req.Permission)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, share)
}

type revokeRequest struct {
	SharedWithEmail string `json:"shared_with_email"`
}

func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: node %s", domain.ErrNotFound, chi.URLParam(r, "id")))
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	if err := h.shareService.Revoke(r.Context(), accountID, nodeID, req.SharedWithEmail); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListShares возвращает гранты на узел для владельца
func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: node %s", domain.ErrNotFound, chi.URLParam(r, "id")))
		return
	}

	shares, err := h.shareService.ListShares(r.Context(), accountID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	if shares == nil {
		shares = []domain.Share{}
	}
	writeJSON(w, http.StatusOK, shares)
}

func (h *ShareHandler) SharedWithMe(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodes, err := h.shareService.SharedWithMe(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	if nodes == nil {
		nodes = []domain.SharedNode{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *ShareHandler) RecentShared(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	nodes, err := h.shareService.RecentShared(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	if nodes == nil {
		nodes = []domain.SharedNode{}
	}
	writeJSON(w, http.StatusOK, nodes)
}
