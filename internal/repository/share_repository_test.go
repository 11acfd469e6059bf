package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

var shareColumns = []string{
	"id", "node_id", "owner_id", "grantee_id", "permission", "created_at",
}

func TestShareRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)

	share := &domain.Share{
		ID:        uuid.New(),
		NodeID:    uuid.New(),
		OwnerID:   "acc-1",
		GranteeID: "acc-2",
		Perm:      domain.PermissionEdit,
	}

	mock.ExpectQuery("INSERT INTO shares").
		WithArgs(share.ID, share.NodeID, "acc-1", "acc-2", "edit").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(share.ID, time.Now()))

	require.NoError(t, repo.Upsert(context.Background(), share))
	assert.False(t, share.CreatedAt.IsZero())
}

// Повторный грант той же паре (узел, получатель) не плодит вторую
// запись: ON CONFLICT обновляет право, RETURNING отдает прежний id.
func TestShareRepositoryUpsertGrantAgainKeepsOneRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)

	nodeID := uuid.New()
	firstID := uuid.New()
	createdAt := time.Now().Add(-time.Hour)

	first := &domain.Share{
		ID:        firstID,
		NodeID:    nodeID,
		OwnerID:   "acc-1",
		GranteeID: "acc-2",
		Perm:      domain.PermissionRead,
	}

	mock.ExpectQuery("INSERT INTO shares").
		WithArgs(firstID, nodeID, "acc-1", "acc-2", "read").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(firstID, createdAt))

	require.NoError(t, repo.Upsert(context.Background(), first))

	// Второй грант приходит с новым id, но конфликт по (node_id, grantee_id)
	// возвращает строку первого гранта с обновленным правом
	second := &domain.Share{
		ID:        uuid.New(),
		NodeID:    nodeID,
		OwnerID:   "acc-1",
		GranteeID: "acc-2",
		Perm:      domain.PermissionEdit,
	}

	mock.ExpectQuery("INSERT INTO shares").
		WithArgs(second.ID, nodeID, "acc-1", "acc-2", "edit").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(firstID, createdAt))

	require.NoError(t, repo.Upsert(context.Background(), second))

	assert.Equal(t, firstID, second.ID)
	assert.Equal(t, domain.PermissionEdit, second.Perm)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShareRepositoryRevokeMissingGrantSucceeds(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	nodeID := uuid.New()

	mock.ExpectExec("DELETE FROM shares").
		WithArgs(nodeID, "acc-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Revoke(context.Background(), nodeID, "acc-2"))
}

func TestShareRepositoryGetEffectiveShareNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	nodeID := uuid.New()

	mock.ExpectQuery("WITH RECURSIVE ancestors").
		WithArgs(nodeID, "acc-2").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetEffectiveShare(context.Background(), nodeID, "acc-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShareRepositoryGetEffectiveShareFromAncestor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)
	nodeID := uuid.New()
	folderID := uuid.New()

	// Грант выдан на папку-предка, не на сам узел
	rows := sqlmock.NewRows(shareColumns).
		AddRow(uuid.New(), folderID, "acc-1", "acc-2", "read", time.Now())

	mock.ExpectQuery("WITH RECURSIVE ancestors").
		WithArgs(nodeID, "acc-2").
		WillReturnRows(rows)

	share, err := repo.GetEffectiveShare(context.Background(), nodeID, "acc-2")
	require.NoError(t, err)
	assert.Equal(t, folderID, share.NodeID)
	assert.Equal(t, domain.PermissionRead, share.Perm)
}

func TestShareRepositoryListRecentShared(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewShareRepository(db)

	sharedColumns := append(append([]string{}, nodeColumns...), "permission", "shared_at")
	nodeID := uuid.New()
	rows := sqlmock.NewRows(sharedColumns).
		AddRow(nodeID, "acc-1", nil, "report.pdf", "file", nil, int64(10), 1, time.Now(), time.Now(), "read", time.Now())

	mock.ExpectQuery("FROM shares").
		WithArgs("acc-2", 10).
		WillReturnRows(rows)

	nodes, err := repo.ListRecentShared(context.Background(), "acc-2", 10)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, nodeID, nodes[0].ID)
	assert.Equal(t, domain.PermissionRead, nodes[0].Permission)
}
