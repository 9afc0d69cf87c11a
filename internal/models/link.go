package models

import (
	"time"
)

// Link сопоставляет slug с адресом назначения
type Link struct {
	ID             int64      `json:"id"`
	Slug           string     `json:"slug"`
	DestinationURL string     `json:"url"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

type CreateLinkInput struct {
	DestinationURL string
	ExpiresIn      *int // минуты
	Slug           *string
}
