// Package inputval validates user-supplied input before it reaches the
// stores. All identifier and field-shape checks live here so handlers and
// services agree on what "well-formed" means.
package inputval

import (
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field bounds, matching the limits the public API documents.
const (
	MinNameLen        = 3
	MaxNameLen        = 50
	MaxDescriptionLen = 255
	MinPasswordLen    = 8
)

// IsValidEmail reports whether s is a plausible RFC 5322 address.
// Display-name forms ("User <user@example.com>") are rejected; we want the
// bare address exactly as it will be stored.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == s
}

// IsValidObjectID reports whether s is a well-formed Mongo ObjectID
// (24 hex characters). Used for every id that crosses the API boundary.
func IsValidObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// IsValidName reports whether a user or room name is within bounds.
func IsValidName(s string) bool {
	n := len(strings.TrimSpace(s))
	return n >= MinNameLen && n <= MaxNameLen
}

// IsValidDescription reports whether a room description fits the stored
// field. Empty is fine; the field is optional.
func IsValidDescription(s string) bool {
	return len(s) <= MaxDescriptionLen
}

// IsValidCapacity reports whether a room capacity is at least one.
func IsValidCapacity(c int) bool {
	return c >= 1
}

// IsValidPrice reports whether a nightly price is non-negative.
func IsValidPrice(p float64) bool {
	return p >= 0
}

// IsValidAvailability reports whether an availability window is ordered.
// Both bounds are required.
func IsValidAvailability(from, to time.Time) bool {
	return !from.IsZero() && !to.IsZero() && from.Before(to)
}

// IsValidPassword reports whether a password meets the minimum length.
func IsValidPassword(s string) bool {
	return len(s) >= MinPasswordLen
}
