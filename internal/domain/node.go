package domain

import (
	"time"

	"github.com/google/uuid"
)

type NodeKind string

const (
	NodeKindFolder NodeKind = "folder"
	NodeKindFile   NodeKind = "file"
)

// Node представляет узел дерева: файл или папку.
type Node struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OwnerID        string     `json:"owner_id" db:"owner_id"`
	ParentID       *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	Name           string     `json:"name" db:"name"`
	Kind           NodeKind   `json:"kind" db:"kind"`
	MIMEType       *string    `json:"mime_type,omitempty" db:"mime_type"`
	SizeBytes      int64      `json:"size_bytes" db:"size_bytes"`
	CurrentVersion int        `json:"current_version" db:"current_version"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

func (n *Node) IsFolder() bool {
	return n.Kind == NodeKindFolder
}

// SharedNode — узел в выдаче "shared with me" с уровнем доступа гранта.
type SharedNode struct {
	Node
	Permission Permission `json:"permission" db:"permission"`
	SharedAt   time.Time  `json:"shared_at" db:"shared_at"`
}

// NodeUpload содержит данные загружаемого файла.
type NodeUpload struct {
	Name     string
	MIMEType string
	Size     int64
	ParentID *uuid.UUID
	OwnerID  string
	Comment  *string
}
