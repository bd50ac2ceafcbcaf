package model

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewMessageID returns a transcript message id. ULIDs put a millisecond
// timestamp in front of monotonic entropy, so two ids minted in the same
// millisecond still differ and sort in creation order.
func NewMessageID() string {
	return ulid.Make().String()
}

// NewThreadID mints a conversation identifier for the backend.
func NewThreadID() string {
	return uuid.New().String()
}
