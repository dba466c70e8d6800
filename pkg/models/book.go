package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	StatusReading   = "reading"
	StatusCompleted = "completed"
	StatusToRead    = "to-read"
)

// BookStatuses lists every valid reading status.
var BookStatuses = []string{StatusReading, StatusCompleted, StatusToRead}

// IsValidBookStatus reports whether status is one of the enumerated reading
// statuses.
func IsValidBookStatus(status string) bool {
	for _, s := range BookStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Book is a single tracked book. Books are private to their owner: every
// query is scoped by user_id, and (user_id, title) is unique.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID        string    `bun:",pk,nullzero" json:"id"`
	UserID    string    `bun:",nullzero" json:"user_id"`
	Title     string    `bun:",nullzero" json:"title"`
	Author    string    `bun:",nullzero" json:"author"`
	Status    string    `bun:",nullzero" json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
