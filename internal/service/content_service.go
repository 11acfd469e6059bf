package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/service/s3"
)

// Максимальный размер содержимого, отдаваемого инлайном как текст
const maxInlineBytes = 10 * 1024 * 1024

// inlineMIMETypes — типы вне text/*, которые клиент редактирует как текст
var inlineMIMETypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/css":        true,
	"application/xhtml+xml":  true,
	"application/html":       true,
}

// IsInlineText сообщает, отдается ли содержимое с таким MIME-типом
// инлайном как текст. Все остальное уходит потоком на скачивание.
func IsInlineText(mimeType string) bool {
	if mimeType == "" {
		return false
	}
	// Отрезаем параметры вида "; charset=utf-8"
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	return inlineMIMETypes[mimeType]
}

// InlineContent — текстовое содержимое версии для инлайн-выдачи
type InlineContent struct {
	Content  string `json:"content"`
	MIMEType string `json:"mime_type"`
}

// VersionContent — разрешенное содержимое версии: текстовые типы несут
// Inline, остальные — открытый поток в Object. Заполнено ровно одно из двух.
type VersionContent struct {
	Node    *domain.Node
	Version *domain.Version
	Inline  *InlineContent
	Object  s3.S3Object
}

// ContentService отдает содержимое версий файла
type ContentService struct {
	versions *VersionService
}

func NewContentService(versions *VersionService) *ContentService {
	return &ContentService{versions: versions}
}

// GetVersionContent открывает версию и решает, как отдавать содержимое.
// versionNumber == 0 означает текущую версию. Текст возвращается инлайном,
// слишком большой текст и бинарные типы уходят потоком.
func (s *ContentService) GetVersionContent(ctx context.Context, accountID string, nodeID uuid.UUID, versionNumber int) (*VersionContent, error) {
	node, version, object, err := s.versions.OpenVersion(ctx, accountID, nodeID, versionNumber)
	if err != nil {
		return nil, err
	}

	mimeType := ""
	if node.MIMEType != nil {
		mimeType = *node.MIMEType
	}

	if !IsInlineText(mimeType) || version.SizeBytes > maxInlineBytes {
		return &VersionContent{Node: node, Version: version, Object: object}, nil
	}

	defer object.Close()

	data, err := io.ReadAll(io.LimitReader(object, maxInlineBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if int64(len(data)) > maxInlineBytes {
		return nil, fmt.Errorf("%w: file too large for inline content", domain.ErrInvalidOperation)
	}

	return &VersionContent{
		Node:    node,
		Version: version,
		Inline:  &InlineContent{Content: string(data), MIMEType: mimeType},
	}, nil
}

// GetInlineContent возвращает текущее содержимое текстового файла.
// Для нетекстовых типов возвращается ErrInvalidOperation: их содержимое
// доступно только потоком через download.
func (s *ContentService) GetInlineContent(ctx context.Context, accountID string, nodeID uuid.UUID) (*InlineContent, error) {
	content, err := s.GetVersionContent(ctx, accountID, nodeID, 0)
	if err != nil {
		return nil, err
	}

	if content.Inline == nil {
		content.Object.Close()
		mimeType := ""
		if content.Node.MIMEType != nil {
			mimeType = *content.Node.MIMEType
		}
		return nil, fmt.Errorf("%w: content of type %q is not text", domain.ErrInvalidOperation, mimeType)
	}

	return content.Inline, nil
}
