package core

import "github.com/google/uuid"

// GenerateID returns a fresh random identifier for render items and other
// engine owned objects.
func GenerateID() uuid.UUID {
	return uuid.New()
}
