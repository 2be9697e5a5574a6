// Package storage provides persistence for Omni.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omnihq/omni/internal/identity"
)

// CredentialRecord is stored credential metadata for one connected service.
type CredentialRecord struct {
	ID        string
	Service   string
	TokenType string
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CredentialStore persists connector credentials encrypted with the device
// data key. Tokens never touch disk in the clear.
type CredentialStore struct {
	db       *DB
	identity *identity.Manager
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(db *DB, identity *identity.Manager) *CredentialStore {
	return &CredentialStore{
		db:       db,
		identity: identity,
	}
}

// Store saves encrypted credentials for a service, replacing any existing row.
func (s *CredentialStore) Store(service, tokenType string, data []byte, expiresAt *time.Time) error {
	encrypted, err := s.identity.Encrypt(data)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	var existingID string
	err = s.db.conn.QueryRow(`SELECT id FROM credentials WHERE service = ?`, service).Scan(&existingID)

	now := time.Now().UTC()
	if err == sql.ErrNoRows {
		_, err = s.db.conn.Exec(`
			INSERT INTO credentials (
				id, service, encrypted_data, token_type, expires_at,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, uuid.New().String(), service, encrypted, tokenType, expiresAt, now, now)
		if err != nil {
			return fmt.Errorf("insert credentials: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("check existing: %w", err)
	}

	_, err = s.db.conn.Exec(`
		UPDATE credentials SET
			encrypted_data = ?,
			token_type = ?,
			expires_at = ?,
			updated_at = ?
		WHERE service = ?
	`, encrypted, tokenType, expiresAt, now, service)
	if err != nil {
		return fmt.Errorf("update credentials: %w", err)
	}
	return nil
}

// Get retrieves and decrypts credentials for a service.
// Returns nil with no error when none are stored.
func (s *CredentialStore) Get(service string) ([]byte, error) {
	var encrypted []byte
	err := s.db.conn.QueryRow(`
		SELECT encrypted_data FROM credentials WHERE service = ?
	`, service).Scan(&encrypted)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}

	decrypted, err := s.identity.Decrypt(encrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt credentials: %w", err)
	}

	return decrypted, nil
}

// GetRecord retrieves credential metadata without decrypting.
func (s *CredentialStore) GetRecord(service string) (*CredentialRecord, error) {
	var record CredentialRecord
	var expiresAt sql.NullTime

	err := s.db.conn.QueryRow(`
		SELECT id, service, token_type, expires_at, created_at, updated_at
		FROM credentials WHERE service = ?
	`, service).Scan(
		&record.ID,
		&record.Service,
		&record.TokenType,
		&expiresAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}

	if expiresAt.Valid {
		record.ExpiresAt = &expiresAt.Time
	}

	return &record, nil
}

// Delete removes credentials for a service.
func (s *CredentialStore) Delete(service string) error {
	_, err := s.db.conn.Exec(`DELETE FROM credentials WHERE service = ?`, service)
	if err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// Exists reports whether credentials are stored for a service.
func (s *CredentialStore) Exists(service string) (bool, error) {
	var count int
	err := s.db.conn.QueryRow(`
		SELECT COUNT(*) FROM credentials WHERE service = ?
	`, service).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}

	return count > 0, nil
}

// GetExpiring returns credentials expiring within the given duration.
func (s *CredentialStore) GetExpiring(within time.Duration) ([]*CredentialRecord, error) {
	threshold := time.Now().Add(within)

	rows, err := s.db.conn.Query(`
		SELECT id, service, token_type, expires_at, created_at, updated_at
		FROM credentials
		WHERE expires_at IS NOT NULL AND expires_at < ?
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expiring: %w", err)
	}
	defer rows.Close()

	var records []*CredentialRecord
	for rows.Next() {
		var record CredentialRecord
		var expiresAt sql.NullTime

		err := rows.Scan(
			&record.ID,
			&record.Service,
			&record.TokenType,
			&expiresAt,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		if expiresAt.Valid {
			record.ExpiresAt = &expiresAt.Time
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}
