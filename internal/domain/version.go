package domain

import (
	"time"

	"github.com/google/uuid"
)

// Version — неизменяемая ревизия содержимого файла.
type Version struct {
	ID            int64     `json:"id" db:"id"`
	NodeID        uuid.UUID `json:"node_id" db:"node_id"`
	VersionNumber int       `json:"version_number" db:"version_number"`
	ContentKey    string    `json:"-" db:"content_key"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	Comment       *string   `json:"comment,omitempty" db:"comment"`
	IsCurrent     bool      `json:"is_current" db:"is_current"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
