// Package identity manages the device identity and its key material.
package identity

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omnihq/omni/internal/core"
)

const keyFileName = "identity.json"

// Manager loads, creates, and holds the device keys.
type Manager struct {
	path string
	keys *DeviceKeys
}

// NewManager creates a manager storing keys under dataDir.
func NewManager(dataDir string) *Manager {
	return &Manager{path: filepath.Join(dataDir, keyFileName)}
}

// Exists reports whether a device identity has been created.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// LoadOrCreate returns the device keys, generating and persisting a fresh
// set on first run. The passphrase may be empty; then private material is
// stored unsealed so the daemon can start unattended.
func (m *Manager) LoadOrCreate(passphrase string) (*DeviceKeys, error) {
	if m.keys != nil {
		return m.keys, nil
	}

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return m.create(passphrase)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file: %w", err)
	}

	var serialized SerializedKeys
	if err := json.Unmarshal(data, &serialized); err != nil {
		return nil, fmt.Errorf("failed to parse identity file: %w", err)
	}

	keys, err := serialized.Deserialize(passphrase)
	if err != nil {
		return nil, err
	}
	m.keys = keys
	return keys, nil
}

func (m *Manager) create(passphrase string) (*DeviceKeys, error) {
	keys, err := GenerateDeviceKeys()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrKeyGenerationFailed, err)
	}

	serialized, err := keys.Serialize(passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize keys: %w", err)
	}

	data, err := json.MarshalIndent(serialized, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write identity file: %w", err)
	}

	m.keys = keys
	return keys, nil
}

// Keys returns the loaded keys, or nil before LoadOrCreate.
func (m *Manager) Keys() *DeviceKeys {
	return m.keys
}

// OwnerID returns the stable owner identifier for stored records.
// Empty before LoadOrCreate.
func (m *Manager) OwnerID() string {
	if m.keys == nil {
		return ""
	}
	return m.keys.OwnerID()
}

// Sign produces the hex signature envelope carried on outbox operations:
// the Ed25519 and ML-DSA signatures joined by a dot.
func (m *Manager) Sign(data []byte) (string, error) {
	if m.keys == nil {
		return "", core.ErrIdentityNotFound
	}
	edSig, mldsaSig, err := m.keys.SignHybrid(data)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(edSig) + "." + hex.EncodeToString(mldsaSig), nil
}

// Verify checks a signature envelope produced by Sign.
func (m *Manager) Verify(data []byte, envelope string) bool {
	if m.keys == nil {
		return false
	}
	dot := strings.IndexByte(envelope, '.')
	if dot < 0 {
		return false
	}
	edSig, err := hex.DecodeString(envelope[:dot])
	if err != nil {
		return false
	}
	mldsaSig, err := hex.DecodeString(envelope[dot+1:])
	if err != nil {
		return false
	}
	return m.keys.VerifyHybrid(data, edSig, mldsaSig)
}

// Encrypt seals data with the device data key.
func (m *Manager) Encrypt(data []byte) ([]byte, error) {
	if m.keys == nil {
		return nil, core.ErrIdentityNotFound
	}
	return m.keys.Encrypt(data)
}

// Decrypt opens data sealed by Encrypt.
func (m *Manager) Decrypt(data []byte) ([]byte, error) {
	if m.keys == nil {
		return nil, core.ErrIdentityNotFound
	}
	return m.keys.Decrypt(data)
}
