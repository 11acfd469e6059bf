package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

var nodeColumns = []string{
	"id", "owner_id", "parent_id", "name", "kind",
	"mime_type", "size_bytes", "current_version", "created_at", "updated_at",
}

func nodeRow(id uuid.UUID, ownerID string, parentID *uuid.UUID, name string, kind domain.NodeKind) []driver.Value {
	return []driver.Value{id, ownerID, parentID, name, string(kind), nil, int64(0), 0, time.Now(), time.Now()}
}

func addNodeRow(rows *sqlmock.Rows, values []driver.Value) *sqlmock.Rows {
	return rows.AddRow(values...)
}

func TestNodeRepositoryCreateNameConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	mock.ExpectQuery("INSERT INTO nodes").
		WillReturnError(&pq.Error{Code: "23505"})

	node := &domain.Node{
		ID:      uuid.New(),
		OwnerID: "acc-1",
		Name:    "docs",
		Kind:    domain.NodeKindFolder,
	}

	err := repo.Create(context.Background(), node)
	assert.ErrorIs(t, err, domain.ErrNameConflict)
}

func TestNodeRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)
	nodeID := uuid.New()

	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), nodeID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNodeRepositoryGetChildren(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	folderID := uuid.New()
	fileID := uuid.New()
	rows := sqlmock.NewRows(nodeColumns)
	addNodeRow(rows, nodeRow(folderID, "acc-1", nil, "docs", domain.NodeKindFolder))
	addNodeRow(rows, nodeRow(fileID, "acc-1", nil, "notes.txt", domain.NodeKindFile))

	mock.ExpectQuery("FROM nodes").
		WithArgs("acc-1", nil).
		WillReturnRows(rows)

	nodes, err := repo.GetChildren(context.Background(), "acc-1", nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, domain.NodeKindFolder, nodes[0].Kind)
	assert.Equal(t, "notes.txt", nodes[1].Name)
}

func TestNodeRepositoryMoveIntoOwnSubtree(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	nodeID := uuid.New()
	targetID := uuid.New()

	mock.ExpectBegin()

	nodeRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(nodeRows, nodeRow(nodeID, "acc-1", nil, "parent", domain.NodeKindFolder))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(nodeRows)

	parentRef := nodeID
	targetRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(targetRows, nodeRow(targetID, "acc-1", &parentRef, "child", domain.NodeKindFolder))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(targetID).
		WillReturnRows(targetRows)

	// Целевая папка лежит внутри перемещаемой
	mock.ExpectQuery("WITH RECURSIVE ancestors").
		WithArgs(targetID, nodeID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectRollback()

	_, err := repo.Move(context.Background(), nodeID, &targetID)
	assert.ErrorIs(t, err, domain.ErrInvalidMove)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeRepositoryMoveIntoItself(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	nodeID := uuid.New()

	mock.ExpectBegin()

	nodeRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(nodeRows, nodeRow(nodeID, "acc-1", nil, "docs", domain.NodeKindFolder))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(nodeRows)

	mock.ExpectRollback()

	_, err := repo.Move(context.Background(), nodeID, &nodeID)
	assert.ErrorIs(t, err, domain.ErrInvalidMove)
}

func TestNodeRepositoryMoveSameParentIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	nodeID := uuid.New()
	parentID := uuid.New()

	mock.ExpectBegin()

	nodeRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(nodeRows, nodeRow(nodeID, "acc-1", &parentID, "notes.txt", domain.NodeKindFile))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(nodeRows)

	targetRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(targetRows, nodeRow(parentID, "acc-1", nil, "docs", domain.NodeKindFolder))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(parentID).
		WillReturnRows(targetRows)

	mock.ExpectQuery("WITH RECURSIVE ancestors").
		WithArgs(parentID, nodeID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	// Родитель не меняется, UPDATE не выполняется
	mock.ExpectCommit()

	node, err := repo.Move(context.Background(), nodeID, &parentID)
	require.NoError(t, err)
	assert.Equal(t, parentID, *node.ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeRepositoryMoveNameConflict(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	nodeID := uuid.New()
	targetID := uuid.New()

	mock.ExpectBegin()

	nodeRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(nodeRows, nodeRow(nodeID, "acc-1", nil, "notes.txt", domain.NodeKindFile))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(nodeRows)

	targetRows := sqlmock.NewRows(nodeColumns)
	addNodeRow(targetRows, nodeRow(targetID, "acc-1", nil, "docs", domain.NodeKindFolder))
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(targetID).
		WillReturnRows(targetRows)

	mock.ExpectQuery("WITH RECURSIVE ancestors").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectRollback()

	_, err := repo.Move(context.Background(), nodeID, &targetID)
	assert.ErrorIs(t, err, domain.ErrNameConflict)
}

func TestNodeRepositoryDeleteSubtree(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	rootID := uuid.New()
	childID := uuid.New()

	mock.ExpectBegin()

	mock.ExpectQuery("WITH RECURSIVE subtree").
		WithArgs(rootID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rootID).AddRow(childID))

	mock.ExpectQuery("DELETE FROM versions").
		WillReturnRows(sqlmock.NewRows([]string{"content_key"}).AddRow("key-1").AddRow("key-2"))

	mock.ExpectExec("DELETE FROM shares").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("DELETE FROM nodes").
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectCommit()

	keys, err := repo.Delete(context.Background(), rootID)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-1", "key-2"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNodeRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewNodeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("WITH RECURSIVE subtree").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
