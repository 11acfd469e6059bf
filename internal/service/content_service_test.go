package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func TestIsInlineText(t *testing.T) {
	cases := []struct {
		mimeType string
		inline   bool
	}{
		{"text/plain", true},
		{"text/markdown", true},
		{"text/plain; charset=utf-8", true},
		{"application/json", true},
		{"application/xml", true},
		{"application/javascript", true},
		{"application/xhtml+xml", true},
		{"image/png", false},
		{"application/pdf", false},
		{"application/octet-stream", false},
		{"video/mp4", false},
		{"", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.inline, IsInlineText(tc.mimeType), "mime type %q", tc.mimeType)
	}
}

func typedFileRow(nodeID uuid.UUID, ownerID, mimeType string, currentVersion int) *sqlmock.Rows {
	return sqlmock.NewRows(nodeColumns).
		AddRow(nodeID, ownerID, nil, "notes.txt", "file", mimeType, int64(100), currentVersion, time.Now(), time.Now())
}

// Текстовая версия отдается инлайном, а не потоком на скачивание
func TestContentServiceVersionContentInlineText(t *testing.T) {
	versions, mock, storage, cleanup := newVersionServiceMock(t)
	defer cleanup()
	svc := NewContentService(versions)

	nodeID := uuid.New()
	storage.uploads["key-v1"] = []byte("first draft")

	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(typedFileRow(nodeID, "acc-1", "text/plain", 2))

	mock.ExpectQuery("FROM versions").
		WithArgs(nodeID, 1).
		WillReturnRows(sqlmock.NewRows(versionColumns).
			AddRow(int64(1), nodeID, 1, "key-v1", int64(11), nil, false, time.Now()))

	content, err := svc.GetVersionContent(context.Background(), "acc-1", nodeID, 1)
	require.NoError(t, err)

	require.NotNil(t, content.Inline)
	assert.Nil(t, content.Object)
	assert.Equal(t, "first draft", content.Inline.Content)
	assert.Equal(t, "text/plain", content.Inline.MIMEType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Бинарная версия уходит потоком, инлайн не заполняется
func TestContentServiceVersionContentBinaryStreams(t *testing.T) {
	versions, mock, storage, cleanup := newVersionServiceMock(t)
	defer cleanup()
	svc := NewContentService(versions)

	nodeID := uuid.New()
	storage.uploads["key-v1"] = []byte{0x89, 0x50, 0x4e, 0x47}

	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(typedFileRow(nodeID, "acc-1", "image/png", 2))

	mock.ExpectQuery("FROM versions").
		WithArgs(nodeID, 1).
		WillReturnRows(sqlmock.NewRows(versionColumns).
			AddRow(int64(1), nodeID, 1, "key-v1", int64(4), nil, false, time.Now()))

	content, err := svc.GetVersionContent(context.Background(), "acc-1", nodeID, 1)
	require.NoError(t, err)

	assert.Nil(t, content.Inline)
	require.NotNil(t, content.Object)
	defer content.Object.Close()

	data, err := io.ReadAll(content.Object)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, data)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// Нетекстовое текущее содержимое не отдается инлайном
func TestContentServiceInlineContentRejectsBinary(t *testing.T) {
	versions, mock, storage, cleanup := newVersionServiceMock(t)
	defer cleanup()
	svc := NewContentService(versions)

	nodeID := uuid.New()
	storage.uploads["key-v2"] = []byte{0x89}

	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(typedFileRow(nodeID, "acc-1", "image/png", 2))

	mock.ExpectQuery("FROM versions").
		WithArgs(nodeID).
		WillReturnRows(sqlmock.NewRows(versionColumns).
			AddRow(int64(2), nodeID, 2, "key-v2", int64(1), nil, true, time.Now()))

	_, err := svc.GetInlineContent(context.Background(), "acc-1", nodeID)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	assert.NoError(t, mock.ExpectationsWereMet())
}
