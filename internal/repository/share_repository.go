package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// Upsert выдает грант или обновляет уровень существующего. Повторная выдача
// тому же получателю не плодит записей: пара (node_id, grantee_id) уникальна.
func (r *ShareRepository) Upsert(ctx context.Context, share *domain.Share) error {
	query := `
        INSERT INTO shares (id, node_id, owner_id, grantee_id, permission)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (node_id, grantee_id)
        DO UPDATE SET permission = EXCLUDED.permission
        RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		share.ID,
		share.NodeID,
		share.OwnerID,
		share.GranteeID,
		share.Perm,
	).Scan(&share.ID, &share.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert share: %w", err)
	}

	return nil
}

// Revoke снимает грант. Отсутствующий грант не ошибка: отзыв идемпотентен.
func (r *ShareRepository) Revoke(ctx context.Context, nodeID uuid.UUID, granteeID string) error {
	_, err := r.db.ExecContext(ctx, `
        DELETE FROM shares WHERE node_id = $1 AND grantee_id = $2
    `, nodeID, granteeID)
	if err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}
	return nil
}

func (r *ShareRepository) ListByNode(ctx context.Context, nodeID uuid.UUID) ([]domain.Share, error) {
	var shares []domain.Share
	query := `
        SELECT * FROM shares
        WHERE node_id = $1
        ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &shares, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}

	return shares, nil
}

// GetEffectiveShare ищет грант получателя на узел или на ближайшего предка.
// Доступ к содержимому расшаренной папки выводится динамически: отдельных
// записей на потомков не создается. При грантах на нескольких уровнях
// побеждает ближайший к узлу.
func (r *ShareRepository) GetEffectiveShare(ctx context.Context, nodeID uuid.UUID, granteeID string) (*domain.Share, error) {
	var share domain.Share
	query := `
        WITH RECURSIVE ancestors AS (
            SELECT id, parent_id, 0 AS depth FROM nodes WHERE id = $1
            UNION ALL
            SELECT n.id, n.parent_id, a.depth + 1
            FROM nodes n
            INNER JOIN ancestors a ON n.id = a.parent_id
        )
        SELECT s.*
        FROM shares s
        INNER JOIN ancestors a ON s.node_id = a.id
        WHERE s.grantee_id = $2
        ORDER BY a.depth
        LIMIT 1`

	err := r.db.GetContext(ctx, &share, query, nodeID, granteeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: no share for node %s", domain.ErrNotFound, nodeID)
		}
		return nil, fmt.Errorf("failed to get effective share: %w", err)
	}

	return &share, nil
}

// ListSharedWithMe возвращает узлы, доступные получателю: прямые гранты
// плюс содержимое расшаренных папок. Узел попадает в выдачу один раз,
// с уровнем ближайшего гранта.
func (r *ShareRepository) ListSharedWithMe(ctx context.Context, granteeID string) ([]domain.SharedNode, error) {
	var nodes []domain.SharedNode
	query := `
        WITH RECURSIVE granted AS (
            SELECT n.id, s.permission, s.created_at AS shared_at, 0 AS depth
            FROM shares s
            INNER JOIN nodes n ON n.id = s.node_id
            WHERE s.grantee_id = $1
            UNION ALL
            SELECT n.id, g.permission, g.shared_at, g.depth + 1
            FROM nodes n
            INNER JOIN granted g ON n.parent_id = g.id
        )
        SELECT DISTINCT ON (n.id) n.*, g.permission, g.shared_at
        FROM granted g
        INNER JOIN nodes n ON n.id = g.id
        ORDER BY n.id, g.depth`

	err := r.db.SelectContext(ctx, &nodes, query, granteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared nodes: %w", err)
	}

	return nodes, nil
}

// ListRecentShared возвращает последние прямые гранты получателю.
func (r *ShareRepository) ListRecentShared(ctx context.Context, granteeID string, limit int) ([]domain.SharedNode, error) {
	var nodes []domain.SharedNode
	query := `
        SELECT n.*, s.permission, s.created_at AS shared_at
        FROM shares s
        INNER JOIN nodes n ON n.id = s.node_id
        WHERE s.grantee_id = $1
        ORDER BY s.created_at DESC
        LIMIT $2`

	err := r.db.SelectContext(ctx, &nodes, query, granteeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent shared nodes: %w", err)
	}

	return nodes, nil
}
