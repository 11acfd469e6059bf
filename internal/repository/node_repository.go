package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nimbusdrive/internal/domain"
)

type NodeRepository struct {
	db *sqlx.DB
}

func NewNodeRepository(db *sqlx.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

// isUniqueViolation распознает нарушение уникальности имени среди соседей.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *NodeRepository) Create(ctx context.Context, node *domain.Node) error {
	query := `
        INSERT INTO nodes (id, owner_id, parent_id, name, kind, mime_type, size_bytes, current_version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		node.ID,
		node.OwnerID,
		node.ParentID,
		node.Name,
		node.Kind,
		node.MIMEType,
		node.SizeBytes,
		node.CurrentVersion,
	).Scan(&node.CreatedAt, &node.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: node %q already exists here", domain.ErrNameConflict, node.Name)
		}
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

// CreateTx вставляет узел в рамках внешней транзакции. Используется
// загрузкой файла, где узел и первая версия пишутся атомарно.
func (r *NodeRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, node *domain.Node) error {
	query := `
        INSERT INTO nodes (id, owner_id, parent_id, name, kind, mime_type, size_bytes, current_version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err := tx.QueryRowContext(
		ctx,
		query,
		node.ID,
		node.OwnerID,
		node.ParentID,
		node.Name,
		node.Kind,
		node.MIMEType,
		node.SizeBytes,
		node.CurrentVersion,
	).Scan(&node.CreatedAt, &node.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: node %q already exists here", domain.ErrNameConflict, node.Name)
		}
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

func (r *NodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	var node domain.Node
	query := `SELECT * FROM nodes WHERE id = $1`

	err := r.db.GetContext(ctx, &node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return &node, nil
}

// GetChildren возвращает прямых потомков (без рекурсии): папки, затем файлы, по имени.
func (r *NodeRepository) GetChildren(ctx context.Context, ownerID string, parentID *uuid.UUID) ([]domain.Node, error) {
	var nodes []domain.Node
	query := `
        SELECT * FROM nodes
        WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
        ORDER BY (kind = 'folder') DESC, name`

	err := r.db.SelectContext(ctx, &nodes, query, ownerID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}

	return nodes, nil
}

// GetAllByOwner возвращает все узлы владельца плоским списком.
func (r *NodeRepository) GetAllByOwner(ctx context.Context, ownerID string) ([]domain.Node, error) {
	var nodes []domain.Node
	query := `
        SELECT * FROM nodes
        WHERE owner_id = $1
        ORDER BY (kind = 'folder') DESC, name`

	err := r.db.SelectContext(ctx, &nodes, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}

	return nodes, nil
}

// SiblingExists проверяет, занято ли имя среди соседей под parent_id.
func (r *NodeRepository) SiblingExists(ctx context.Context, ownerID string, parentID *uuid.UUID, name string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM nodes
            WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
            AND name = $3 AND id != $4
        )`

	err := r.db.GetContext(ctx, &exists, query, ownerID, parentID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("failed to check sibling existence: %w", err)
	}

	return exists, nil
}

func (r *NodeRepository) UpdateName(ctx context.Context, id uuid.UUID, newName string) error {
	query := `
        UPDATE nodes
        SET name = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, newName, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: node %q already exists here", domain.ErrNameConflict, newName)
		}
		return fmt.Errorf("failed to update node name: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: node %s", domain.ErrNotFound, id)
	}

	return nil
}

// Move меняет родителя узла. Проверка цикла и запись родителя выполняются
// в одной транзакции: перемещаемый узел блокируется FOR UPDATE, затем цепочка
// предков целевой папки обходится рекурсивным CTE. Перемещение в текущего
// родителя — no-op.
func (r *NodeRepository) Move(ctx context.Context, nodeID uuid.UUID, targetParentID *uuid.UUID) (*domain.Node, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var node domain.Node
	err = tx.GetContext(ctx, &node, `SELECT * FROM nodes WHERE id = $1 FOR UPDATE`, nodeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, nodeID)
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	if targetParentID != nil {
		if *targetParentID == nodeID {
			return nil, fmt.Errorf("%w: cannot move node into itself", domain.ErrInvalidMove)
		}

		var target domain.Node
		err = tx.GetContext(ctx, &target, `SELECT * FROM nodes WHERE id = $1 FOR UPDATE`, *targetParentID)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("%w: target parent %s", domain.ErrNotFound, *targetParentID)
			}
			return nil, fmt.Errorf("failed to get target parent: %w", err)
		}

		if !target.IsFolder() {
			return nil, fmt.Errorf("%w: target parent is not a folder", domain.ErrInvalidMove)
		}
		if target.OwnerID != node.OwnerID {
			return nil, fmt.Errorf("%w: target parent %s", domain.ErrNotFound, *targetParentID)
		}

		// Поднимаемся от целевой папки к корню; встретили перемещаемый узел — цикл
		var wouldCycle bool
		err = tx.QueryRowContext(ctx, `
            WITH RECURSIVE ancestors AS (
                SELECT id, parent_id FROM nodes WHERE id = $1
                UNION ALL
                SELECT n.id, n.parent_id
                FROM nodes n
                INNER JOIN ancestors a ON n.id = a.parent_id
            )
            SELECT EXISTS(SELECT 1 FROM ancestors WHERE id = $2)
        `, *targetParentID, nodeID).Scan(&wouldCycle)
		if err != nil {
			return nil, fmt.Errorf("failed to check hierarchy: %w", err)
		}
		if wouldCycle {
			return nil, fmt.Errorf("%w: cannot move node into its own subtree", domain.ErrInvalidMove)
		}
	}

	// Перемещение в текущего родителя — успех без записи
	if equalParent(node.ParentID, targetParentID) {
		return &node, tx.Commit()
	}

	var conflict bool
	err = tx.QueryRowContext(ctx, `
        SELECT EXISTS(
            SELECT 1 FROM nodes
            WHERE owner_id = $1 AND parent_id IS NOT DISTINCT FROM $2
            AND name = $3 AND id != $4
        )`, node.OwnerID, targetParentID, node.Name, nodeID).Scan(&conflict)
	if err != nil {
		return nil, fmt.Errorf("failed to check name conflict: %w", err)
	}
	if conflict {
		return nil, fmt.Errorf("%w: node %q already exists in target folder", domain.ErrNameConflict, node.Name)
	}

	err = tx.QueryRowContext(ctx, `
        UPDATE nodes
        SET parent_id = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $2
        RETURNING updated_at
    `, targetParentID, nodeID).Scan(&node.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to move node: %w", err)
	}

	node.ParentID = targetParentID

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &node, nil
}

func equalParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete удаляет узел и, для папок, все поддерево вместе с версиями и
// грантами в одной транзакции. Возвращает content-ключи удаленных версий
// для последующей зачистки блобов.
func (r *NodeRepository) Delete(ctx context.Context, id uuid.UUID) ([]string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var subtree []uuid.UUID
	err = tx.SelectContext(ctx, &subtree, `
        WITH RECURSIVE subtree AS (
            SELECT id FROM nodes WHERE id = $1
            UNION ALL
            SELECT n.id
            FROM nodes n
            INNER JOIN subtree s ON n.parent_id = s.id
        )
        SELECT id FROM subtree
    `, id)
	if err != nil {
		return nil, fmt.Errorf("failed to collect subtree: %w", err)
	}

	if len(subtree) == 0 {
		return nil, fmt.Errorf("%w: node %s", domain.ErrNotFound, id)
	}

	var contentKeys []string
	err = tx.SelectContext(ctx, &contentKeys, `
        DELETE FROM versions WHERE node_id = ANY($1) RETURNING content_key
    `, pq.Array(subtree))
	if err != nil {
		return nil, fmt.Errorf("failed to delete versions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM shares WHERE node_id = ANY($1)`, pq.Array(subtree))
	if err != nil {
		return nil, fmt.Errorf("failed to delete shares: %w", err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ANY($1)`, pq.Array(subtree))
	if err != nil {
		return nil, fmt.Errorf("failed to delete nodes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[NodeRepository] Deleted subtree of %d nodes rooted at %s", len(subtree), id)

	return contentKeys, nil
}

func (r *NodeRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}
