package domain

import "errors"

var (
	// ErrNotFound is returned for unknown or already consumed approval tokens
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage is returned when a message or edit has no text
	ErrEmptyMessage = errors.New("empty message")
	// ErrRouteViolation is returned for outbound jobs whose category does not
	// match the sending identity
	ErrRouteViolation = errors.New("routing violation")
)
