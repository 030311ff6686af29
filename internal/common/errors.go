// Package common defines the sentinel errors shared across the relay.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Mutation validation errors (bad input, never persisted).
	ErrValidation = errors.New("validation error")

	// Deletion errors, surfaced to the requesting session only.
	ErrNotFound = errors.New("not found")
	ErrNotOwner = errors.New("not owner")

	// Session and admin errors.
	ErrNotJoined    = errors.New("not joined")
	ErrUnauthorized = errors.New("unauthorized")

	// Backup errors. A failed integrity check on a backup is treated the
	// same as a missing backup; a failed backup cycle never undoes the
	// local mutation that triggered it.
	ErrIntegrity    = errors.New("integrity check failed")
	ErrBackupFailed = errors.New("backup failed")
)
