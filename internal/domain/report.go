package domain

import "time"

// Report is a free-form write-up owned by its author.
type Report struct {
	ID          string
	Title       string
	Description string
	CreatedByID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
