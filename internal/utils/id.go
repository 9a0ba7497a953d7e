package utils

import "github.com/google/uuid"

// NewID returns a random session identifier.
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the first block of id, enough to tell sessions apart in logs.
func ShortID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()[:8]
	}
	return id
}
