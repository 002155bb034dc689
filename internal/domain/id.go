package domain

import (
	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for locally owned records such as runs.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewRequestID generates a random id used to correlate one HTTP call in logs.
func NewRequestID() string {
	return uuid.New().String()
}
