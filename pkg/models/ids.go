package models

import "github.com/google/uuid"

var runNamespace = uuid.MustParse("6f1c1c8e-3f0a-4c8e-9a55-2d1b7e0f4a11")

// NewRunID returns a random run id.
func NewRunID() string {
	return uuid.NewString()
}

// DerivedRunID returns the same run id for the same seed. Handlers that may be delivered
// more than once derive the ids of the runs they create so a redelivery inserts nothing new.
func DerivedRunID(seed string) string {
	return uuid.NewSHA1(runNamespace, []byte(seed)).String()
}
