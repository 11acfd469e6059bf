package domain

import (
	"time"

	"github.com/google/uuid"
)

type Permission string

const (
	PermissionRead Permission = "read"
	PermissionEdit Permission = "edit"
)

func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionEdit
}

// Allows сообщает, покрывает ли выданный уровень запрошенный.
func (p Permission) Allows(required Permission) bool {
	if p == PermissionEdit {
		return true
	}
	return required == PermissionRead
}

// Share — грант доступа к узлу для другого аккаунта.
// На пару (node_id, grantee_id) существует не больше одной записи,
// повторный grant перезаписывает permission.
type Share struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	NodeID    uuid.UUID  `json:"node_id" db:"node_id"`
	OwnerID   string     `json:"owner_id" db:"owner_id"`
	GranteeID string     `json:"grantee_id" db:"grantee_id"`
	Perm      Permission `json:"permission" db:"permission"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
