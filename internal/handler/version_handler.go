package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

type VersionHandler struct {
	versionService *service.VersionService
	contentService *service.ContentService
	verifier       *auth.Verifier
}

func NewVersionHandler(versionService *service.VersionService, contentService *service.ContentService, verifier *auth.Verifier) *VersionHandler {
	return &VersionHandler{
		versionService: versionService,
		contentService: contentService,
		verifier:       verifier,
	}
}

func versionParams(r *http.Request) (uuid.UUID, int, error) {
	nodeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("%w: node %s", domain.ErrNotFound, chi.URLParam(r, "id"))
	}

	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		return uuid.Nil, 0, fmt.Errorf("%w: invalid version number", domain.ErrNotFound)
	}

	return nodeID, number, nil
}

// List возвращает историю версий файла от новых к старым
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
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

	versions, err := h.versionService.ListVersions(r.Context(), accountID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	if versions == nil {
		versions = []domain.Version{}
	}
	writeJSON(w, http.StatusOK, versions)
}

// Add загружает новое содержимое файла как очередную версию
func (h *VersionHandler) Add(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, fmt.Errorf("%w: invalid multipart form", domain.ErrInvalidOperation))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: file field is required", domain.ErrInvalidOperation))
		return
	}
	defer file.Close()

	var comment *string
	if c := r.FormValue("comment"); c != "" {
		comment = &c
	}

	version, err := h.versionService.AddVersion(
		r.Context(),
		accountID,
		nodeID,
		header.Size,
		comment,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, version)
}

// Restore делает старую версию текущей, создавая новую запись в истории
func (h *VersionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodeID, number, err := versionParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	version, err := h.versionService.Restore(r.Context(), accountID, nodeID, number)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, version)
}

func (h *VersionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodeID, number, err := versionParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.versionService.DeleteVersion(r.Context(), accountID, nodeID, number); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Content отдает содержимое конкретной версии. Текстовые типы уходят
// инлайном как JSON, остальные потоком на скачивание, как и у текущего
// содержимого файла.
func (h *VersionHandler) Content(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodeID, number, err := versionParams(r)
	if err != nil {
		writeError(w, err)
		return
	}

	content, err := h.contentService.GetVersionContent(r.Context(), accountID, nodeID, number)
	if err != nil {
		writeError(w, err)
		return
	}

	if content.Inline != nil {
		writeJSON(w, http.StatusOK, content.Inline)
		return
	}

	defer content.Object.Close()
	serveObject(w, content.Node, content.Version.SizeBytes, content.Object, http.StatusOK)
}
