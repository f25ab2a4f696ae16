package utils

import (
	"strconv"

	"github.com/google/uuid"
)

// NewRandomID returns a new random (v4) id.
func NewRandomID() string {
	return uuid.New().String()
}

// NewID returns a deterministic id for the given number, handy in tests.
func NewID(i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.Itoa(i))).String()
}

// IsValidID returns if the given string looks like one of our ids.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
