package domain

import "errors"

var (
	// ErrAthleteNotFound indicates the catalog has no record for the requested ID.
	ErrAthleteNotFound = errors.New("athlete not found")
	// ErrInvalidAthlete indicates a catalog record that violates question invariants.
	ErrInvalidAthlete = errors.New("invalid athlete record")
	// ErrSessionNotFound is returned when a quiz session has not been started.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrProgressNotFound is returned by remote backends when no record exists for a key.
	ErrProgressNotFound = errors.New("progress record not found")
)
