package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbusdrive/internal/domain"
	"nimbusdrive/internal/repository"
)

var accountColumns = []string{"id", "email", "username", "created_at"}

func newShareServiceMock(t *testing.T) (*ShareService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")

	nodeRepo := repository.NewNodeRepository(sqlxDB)
	shareRepo := repository.NewShareRepository(sqlxDB)
	accountRepo := repository.NewAccountRepository(sqlxDB)
	permissions := NewPermissionService(nodeRepo, shareRepo)

	svc := NewShareService(shareRepo, accountRepo, permissions)

	return svc, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestShareServiceGrant(t *testing.T) {
	svc, mock, cleanup := newShareServiceMock(t)
	defer cleanup()

	nodeID := uuid.New()

	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(fileRow(nodeID, "acc-1", 1))

	mock.ExpectQuery("FROM accounts WHERE email").
		WithArgs("friend@example.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acc-2", "friend@example.com", "friend", time.Now()))

	mock.ExpectQuery("INSERT INTO shares").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(uuid.New(), time.Now()))

	share, err := svc.Grant(context.Background(), "acc-1", nodeID, "friend@example.com", domain.PermissionRead)
	require.NoError(t, err)
	assert.Equal(t, "acc-2", share.GranteeID)
	assert.Equal(t, domain.PermissionRead, share.Perm)
}

func TestShareServiceGrantRequiresOwnership(t *testing.T) {
	svc, mock, cleanup := newShareServiceMock(t)
	defer cleanup()

	nodeID := uuid.New()

	// Узел принадлежит другому аккаунту
	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(fileRow(nodeID, "acc-2", 1))

	_, err := svc.Grant(context.Background(), "acc-1", nodeID, "friend@example.com", domain.PermissionRead)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShareServiceGrantToSelfFails(t *testing.T) {
	svc, mock, cleanup := newShareServiceMock(t)
	defer cleanup()

	nodeID := uuid.New()

	mock.ExpectQuery("FROM nodes WHERE id").
		WithArgs(nodeID).
		WillReturnRows(fileRow(nodeID, "acc-1", 1))

	mock.ExpectQuery("FROM accounts WHERE email").
		WithArgs("me@example.com").
		WillReturnRows(sqlmock.NewRows(accountColumns).
			AddRow("acc-1", "me@example.com", "me", time.Now()))

	_, err := svc.Grant(context.Background(), "acc-1", nodeID, "me@example.com", domain.PermissionEdit)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestShareServiceGrantRejectsUnknownPermission(t *testing.T) {
	svc, _, cleanup := newShareServiceMock(t)
	defer cleanup()

	_, err := svc.Grant(context.Background(), "acc-1", uuid.New(), "friend@example.com", "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}
