package util

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a random identifier for entities (agents, conversations,
// messages, documents).
func NewID() string {
	return uuid.NewString()
}

// NewCallID returns a short synthetic tool-call id for backends that do not
// assign their own (e.g. Gemini).
func NewCallID() string {
	return fmt.Sprintf("call_%s", uuid.NewString()[:8])
}
