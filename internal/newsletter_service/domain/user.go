package domain

import "github.com/google/uuid"

// User is an admin account allowed to publish newsletter issues.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
}
