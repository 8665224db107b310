package internal

import (
	"github.com/google/uuid"
)

// GenerateUUID creates a new UUID.
func GenerateUUID() string {
	return uuid.New().String()
}
