package service

import "github.com/google/uuid"

// newID returns a UUIDv7; ids issued by one process sort in creation order.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
