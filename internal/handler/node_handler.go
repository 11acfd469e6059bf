package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service"
)

const maxUploadMemory = 32 << 20 // 32MB в памяти, остальное на диск

type NodeHandler struct {
	nodeService    *service.NodeService
	versionService *service.VersionService
	contentService *service.ContentService
	verifier       *auth.Verifier
}

func NewNodeHandler(
	nodeService *service.NodeService,
	versionService *service.VersionService,
	contentService *service.ContentService,
	verifier *auth.Verifier,
) *NodeHandler {
	return &NodeHandler{
		nodeService:    nodeService,
		versionService: versionService,
		contentService: contentService,
		verifier:       verifier,
	}
}

// parseOptionalParent разбирает parent_id из запроса. Пустое значение
// означает корень.
func parseOptionalParent(raw string) (*uuid.UUID, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid parent_id: %w", err)
	}
	return &id, nil
}

type createFolderRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

func (h *NodeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	folder, err := h.nodeService.CreateFolder(r.Context(), accountID, req.Name, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// Upload принимает multipart-форму с полем file и необязательными
// parent_id и comment.
func (h *NodeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
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

	parentID, err := parseOptionalParent(r.FormValue("parent_id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidOperation, err))
		return
	}

	upload := &domain.NodeUpload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		ParentID: parentID,
		OwnerID:  accountID,
	}
	if comment := r.FormValue("comment"); comment != "" {
		upload.Comment = &comment
	}

	node, err := h.nodeService.UploadFile(r.Context(), accountID, upload, file)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, node)
}

// List возвращает содержимое папки из parent_id или корня
func (h *NodeHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	parentID, err := parseOptionalParent(r.URL.Query().Get("parent_id"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidOperation, err))
		return
	}

	nodes, err := h.nodeService.ListChildren(r.Context(), accountID, parentID)
	if err != nil {
		writeError(w, err)
		return
	}

	if nodes == nil {
		nodes = []domain.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *NodeHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.verifier.VerifyToken(r)
	if err != nil {
		writeUnauthorized(w)
		return
	}

	nodes, err := h.nodeService.ListAll(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}

	if nodes == nil {
		nodes = []domain.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *NodeHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	node, err := h.nodeService.GetNode(r.Context(), accountID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

type renameRequest struct {
	NewName string `json:"new_name"`
}

func (h *NodeHandler) Rename(w http.ResponseWriter, r *http.Request) {
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

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	node, err := h.nodeService.Rename(r.Context(), accountID, nodeID, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

type moveRequest struct {
	TargetParentID *uuid.UUID `json:"target_parent_id"`
}

func (h *NodeHandler) Move(w http.ResponseWriter, r *http.Request) {
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

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", domain.ErrInvalidOperation))
		return
	}

	node, err := h.nodeService.Move(r.Context(), accountID, nodeID, req.TargetParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, node)
}

func (h *NodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.nodeService.Delete(r.Context(), accountID, nodeID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download отдает содержимое текущей версии потоком. Поддерживает
// Range-запросы для докачки и медиа.
func (h *NodeHandler) Download(w http.ResponseWriter, r *http.Request) {
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

	rangeHeader := r.Header.Get("Range")
	if rangeHeader != "" {
		h.downloadRange(w, r, accountID, nodeID, rangeHeader)
		return
	}

	node, version, object, err := h.versionService.OpenVersion(r.Context(), accountID, nodeID, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	defer object.Close()

	serveObject(w, node, version.SizeBytes, object, http.StatusOK)
}

func (h *NodeHandler) downloadRange(w http.ResponseWriter, r *http.Request, accountID string, nodeID uuid.UUID, rangeHeader string) {
	start, end, err := parseRangeHeader(rangeHeader)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidOperation, err))
		return
	}

	node, version, object, err := h.versionService.OpenVersionRange(r.Context(), accountID, nodeID, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	defer object.Close()

	if end <= 0 || end >= version.SizeBytes {
		end = version.SizeBytes - 1
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, version.SizeBytes))
	w.Header().Set("Accept-Ranges", "bytes")
	serveObject(w, node, end-start+1, object, http.StatusPartialContent)
}

// parseRangeHeader разбирает заголовок вида "bytes=0-1023". Открытый
// конец ("bytes=0-") отдается как end = 0 и дорезается по размеру файла.
func parseRangeHeader(header string) (int64, int64, error) {
	if !strings.HasPrefix(header, "bytes=") {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}

	parts := strings.SplitN(strings.TrimPrefix(header, "bytes="), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed range header")
	}

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed range start")
	}

	var end int64
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range end")
		}
	}

	return start, end, nil
}

func serveObject(w http.ResponseWriter, node *domain.Node, length int64, object io.Reader, status int) {
	contentType := "application/octet-stream"
	if node.MIMEType != nil && *node.MIMEType != "" {
		contentType = *node.MIMEType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	w.WriteHeader(status)

	if _, err := io.Copy(w, object); err != nil {
		log.Printf("[Download] Error streaming node %s: %v", node.ID, err)
	}
}

// Content возвращает текущее содержимое текстового файла инлайном
func (h *NodeHandler) Content(w http.ResponseWriter, r *http.Request) {
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

	content, err := h.contentService.GetInlineContent(r.Context(), accountID, nodeID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, content)
}
