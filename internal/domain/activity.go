package domain

import "time"

// MaxUserAgentLength bounds the stored user-agent header.
const MaxUserAgentLength = 500

// ActivityRecord is an append-only entry describing a security relevant account event.
type ActivityRecord struct {
	ID        string
	AccountID string
	Action    string
	IPAddress *string
	UserAgent *string
	CreatedAt time.Time
}
