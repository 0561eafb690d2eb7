package domain

import "time"

// User is the root owner of every other user-scoped entity in the system.
// It is created the first time an external platform (chat bot, web session)
// reports an unknown external identifier, and is never destroyed.
type User struct {
	ID                 string
	ExternalPlatformID string
	Settings           map[string]string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
