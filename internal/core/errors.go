// Package core defines the fundamental types and errors for Omni.
package core

import "errors"

// Core errors that can occur across the system
var (
	// Store lifecycle errors
	ErrNotReady           = errors.New("store is not initialized")
	ErrAlreadyInitialized = errors.New("store is already initializing")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")

	// Record errors
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")

	// Storage errors
	ErrDatabaseNotFound = errors.New("database not found")
	ErrMigrationFailed  = errors.New("migration failed")

	// Identity errors
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrIdentityExists      = errors.New("identity already exists")
	ErrKeyGenerationFailed = errors.New("key generation failed")
	ErrInvalidKey          = errors.New("invalid cryptographic key")

	// Connector errors
	ErrServiceNotFound      = errors.New("service not found")
	ErrServiceNotConnected  = errors.New("service is not connected")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("intelligence gateway unavailable")
	ErrCallCancelled      = errors.New("call cancelled")

	// Outbox errors
	ErrOutboxClosed = errors.New("outbox is closed")

	// Publishing errors
	ErrPlatformUnknown = errors.New("unknown platform")
	ErrMediaRequired   = errors.New("platform requires media")
)
