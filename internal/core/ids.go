package core

import "github.com/google/uuid"

// NewID returns a random identifier for users, workspaces and expenses.
func NewID() string {
	return uuid.NewString()
}

// IDGenerator produces identifiers; tests swap in a deterministic sequence.
type IDGenerator func() string
