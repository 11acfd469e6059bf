package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

const defaultQuotaLimit = 10 * 1024 * 1024 * 1024 // 10GB по умолчанию

type StorageQuotaRepository struct {
	db *sqlx.DB
}

func NewStorageQuotaRepository(db *sqlx.DB) *StorageQuotaRepository {
	return &StorageQuotaRepository{db: db}
}

// GetQuota возвращает квоту владельца, создавая запись с лимитом по
// умолчанию при первом обращении.
func (r *StorageQuotaRepository) GetQuota(ctx context.Context, ownerID string) (*domain.StorageQuota, error) {
	var quota domain.StorageQuota

	query := `SELECT * FROM storage_quotas WHERE owner_id = $1`
	err := r.db.GetContext(ctx, &quota, query, ownerID)

	if err == sql.ErrNoRows {
		// Создаем новую запись квоты
		insertQuery := `
            INSERT INTO storage_quotas (owner_id, total_bytes_limit, used_bytes)
            VALUES ($1, $2, 0)
            RETURNING *`

		err = r.db.GetContext(ctx, &quota, insertQuery, ownerID, defaultQuotaLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to create quota: %w", err)
		}

		log.Printf("[GetQuota] Created new quota for owner %s with limit %d bytes", ownerID, defaultQuotaLimit)
		return &quota, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	return &quota, nil
}

// UpdateUsedSpace изменяет занятое место на delta (может быть отрицательной).
func (r *StorageQuotaRepository) UpdateUsedSpace(ctx context.Context, ownerID string, delta int64) error {
	query := `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes + $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, delta, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update used space: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: quota for owner %s", domain.ErrNotFound, ownerID)
	}

	return nil
}

func (r *StorageQuotaRepository) UpdateQuotaLimit(ctx context.Context, ownerID string, newLimit int64) error {
	query := `
        UPDATE storage_quotas
        SET total_bytes_limit = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: quota for owner %s", domain.ErrNotFound, ownerID)
	}

	return nil
}

// CalculateAndUpdateUsedSpace пересчитывает занятое место по всем версиям
// владельца. Используется для сверки, когда счетчик разошелся с фактом.
func (r *StorageQuotaRepository) CalculateAndUpdateUsedSpace(ctx context.Context, ownerID string) (int64, error) {
	var totalSize int64
	query := `
        SELECT COALESCE(SUM(v.size_bytes), 0)
        FROM versions v
        INNER JOIN nodes n ON n.id = v.node_id
        WHERE n.owner_id = $1`

	err := r.db.GetContext(ctx, &totalSize, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate used space: %w", err)
	}

	updateQuery := `
        UPDATE storage_quotas
        SET used_bytes = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`

	_, err = r.db.ExecContext(ctx, updateQuery, totalSize, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to update calculated space: %w", err)
	}

	log.Printf("[CalculateAndUpdateUsedSpace] Recalculated quota for owner %s: %d bytes", ownerID, totalSize)

	return totalSize, nil
}
