package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type VersionRepository struct {
	db *sqlx.DB
}

func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// LockNode блокирует строку файла до конца транзакции. Все записи версий
// (загрузка, восстановление) идут через эту блокировку, поэтому номера
// версий выдаются строго последовательно.
func (r *VersionRepository) LockNode(ctx context.Context, tx *sqlx.Tx, nodeID uuid.UUID) (*domain.Node, error) {
	var node domain.Node
	err := tx.GetContext(ctx, &node, `SELECT * FROM nodes WHERE id = $1 FOR UPDATE`, nodeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
		}
		return nil, fmt.Errorf("failed to lock node: %w", err)
	}
	return &node, nil
}

func (r *VersionRepository) DemoteCurrent(ctx context.Context, tx *sqlx.Tx, nodeID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE versions SET is_current = FALSE
        WHERE node_id = $1 AND is_current
    `, nodeID)
	if err != nil {
		return fmt.Errorf("failed to demote current version: %w", err)
	}
	return nil
}

func (r *VersionRepository) Insert(ctx context.Context, tx *sqlx.Tx, version *domain.Version) error {
	query := `
        INSERT INTO versions (node_id, version_number, content_key, size_bytes, comment, is_current)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at`

	err := tx.QueryRowContext(
		ctx,
		query,
		version.NodeID,
		version.VersionNumber,
		version.ContentKey,
		version.SizeBytes,
		version.Comment,
		version.IsCurrent,
	).Scan(&version.ID, &version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}

	return nil
}

// UpdateNodeOnNewVersion синхронизирует файл с новой текущей версией.
func (r *VersionRepository) UpdateNodeOnNewVersion(ctx context.Context, tx *sqlx.Tx, nodeID uuid.UUID, versionNumber int, sizeBytes int64) error {
	_, err := tx.ExecContext(ctx, `
        UPDATE nodes
        SET current_version = $1,
            size_bytes = $2,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $3
    `, versionNumber, sizeBytes, nodeID)
	if err != nil {
		return fmt.Errorf("failed to update node version info: %w", err)
	}
	return nil
}

func (r *VersionRepository) GetByNumber(ctx context.Context, nodeID uuid.UUID, versionNumber int) (*domain.Version, error) {
	var version domain.Version
	query := `SELECT * FROM versions WHERE node_id = $1 AND version_number = $2`

	err := r.db.GetContext(ctx, &version, query, nodeID, versionNumber)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: version %d of node %s", domain.ErrNotFound, versionNumber, nodeID)
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return &version, nil
}

func (r *VersionRepository) GetCurrent(ctx context.Context, nodeID uuid.UUID) (*domain.Version, error) {
	var version domain.Version
	query := `SELECT * FROM versions WHERE node_id = $1 AND is_current`

	err := r.db.GetContext(ctx, &version, query, nodeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: current version of node %s", domain.ErrNotFound, nodeID)
		}
		return nil, fmt.Errorf("failed to get current version: %w", err)
	}

	return &version, nil
}

// List возвращает версии файла от новых к старым.
func (r *VersionRepository) List(ctx context.Context, nodeID uuid.UUID) ([]domain.Version, error) {
	var versions []domain.Version
	query := `
        SELECT * FROM versions
        WHERE node_id = $1
        ORDER BY version_number DESC`

	err := r.db.SelectContext(ctx, &versions, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	return versions, nil
}

// Delete безвозвратно удаляет версию и возвращает ее content-ключ для
// зачистки блоба. Текущая версия защищена на уровне сервиса.
func (r *VersionRepository) Delete(ctx context.Context, nodeID uuid.UUID, versionNumber int) (string, error) {
	var contentKey string
	query := `
        DELETE FROM versions
        WHERE node_id = $1 AND version_number = $2 AND NOT is_current
        RETURNING content_key`

	err := r.db.QueryRowContext(ctx, query, nodeID, versionNumber).Scan(&contentKey)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("%w: version %d of node %s", domain.ErrNotFound, versionNumber, nodeID)
		}
		return "", fmt.Errorf("failed to delete version: %w", err)
	}

	return contentKey, nil
}

func (r *VersionRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
