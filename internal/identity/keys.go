// Package identity handles the device identity that owns all local records.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// DeviceKeys holds the signing keys plus the symmetric data key used for
// credential encryption at rest.
type DeviceKeys struct {
	// Classical signing
	Ed25519Public  ed25519.PublicKey
	Ed25519Private ed25519.PrivateKey

	// Post-quantum signing (ML-DSA-65, FIPS 204)
	MLDSAPublic  mldsa65.PublicKey
	MLDSAPrivate mldsa65.PrivateKey

	// Symmetric key for encrypting stored credentials
	DataKey []byte
}

// SerializedKeys is the storable form. Public keys travel in the clear;
// private material is sealed when a passphrase is set.
type SerializedKeys struct {
	Ed25519Public string `json:"ed25519_public"`
	MLDSAPublic   string `json:"mldsa_public"`

	PrivateKeys string `json:"private_keys"` // sealed or plain, per Algorithm

	Salt      string `json:"salt,omitempty"`
	Algorithm string `json:"algorithm"` // "argon2id" or "none"
}

// GenerateDeviceKeys creates a fresh key set. Called once per installation.
func GenerateDeviceKeys() (*DeviceKeys, error) {
	keys := &DeviceKeys{}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Ed25519 keys: %w", err)
	}
	keys.Ed25519Public = pub
	keys.Ed25519Private = priv

	mldsaPub, mldsaPriv, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ML-DSA keys: %w", err)
	}
	keys.MLDSAPublic = *mldsaPub
	keys.MLDSAPrivate = *mldsaPriv

	keys.DataKey = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(keys.DataKey); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	return keys, nil
}

// OwnerID derives the stable short identifier every stored record is owned
// by: the first 16 hex characters of the Ed25519 public key digest.
func (k *DeviceKeys) OwnerID() string {
	sum := sha256.Sum256(k.Ed25519Public)
	return hex.EncodeToString(sum[:])[:16]
}

// Serialize packs the key set for storage. With an empty passphrase the
// private material is stored unsealed so the daemon can start unattended.
func (k *DeviceKeys) Serialize(passphrase string) (*SerializedKeys, error) {
	privateData := packPrivateKeys(k)

	mldsaPubBytes, err := k.MLDSAPublic.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ML-DSA public key: %w", err)
	}

	out := &SerializedKeys{
		Ed25519Public: base64.StdEncoding.EncodeToString(k.Ed25519Public),
		MLDSAPublic:   base64.StdEncoding.EncodeToString(mldsaPubBytes),
	}

	if passphrase == "" {
		out.PrivateKeys = base64.StdEncoding.EncodeToString(privateData)
		out.Algorithm = "none"
		return out, nil
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(passphrase), salt, 3, 64*1024, 4, 32)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out.PrivateKeys = base64.StdEncoding.EncodeToString(aead.Seal(nonce, nonce, privateData, nil))
	out.Salt = base64.StdEncoding.EncodeToString(salt)
	out.Algorithm = "argon2id"
	return out, nil
}

// Deserialize reconstructs the key set, unsealing with the passphrase when
// the stored form is sealed.
func (s *SerializedKeys) Deserialize(passphrase string) (*DeviceKeys, error) {
	raw, err := base64.StdEncoding.DecodeString(s.PrivateKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private keys: %w", err)
	}

	var privateData []byte
	switch s.Algorithm {
	case "none", "":
		privateData = raw
	case "argon2id":
		salt, err := base64.StdEncoding.DecodeString(s.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode salt: %w", err)
		}
		key := argon2.IDKey([]byte(passphrase), salt, 3, 64*1024, 4, 32)
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		if len(raw) < aead.NonceSize() {
			return nil, errors.New("invalid sealed key data")
		}
		nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
		privateData, err = aead.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("unsealing failed (wrong passphrase?): %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown key algorithm %q", s.Algorithm)
	}

	keys, err := unpackPrivateKeys(privateData)
	if err != nil {
		return nil, err
	}

	edPub, err := base64.StdEncoding.DecodeString(s.Ed25519Public)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ed25519 public key: %w", err)
	}
	keys.Ed25519Public = edPub

	mldsaPubBytes, err := base64.StdEncoding.DecodeString(s.MLDSAPublic)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ML-DSA public key: %w", err)
	}
	mldsaPub := new(mldsa65.PublicKey)
	if err := mldsaPub.UnmarshalBinary(mldsaPubBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ML-DSA public key: %w", err)
	}
	keys.MLDSAPublic = *mldsaPub

	return keys, nil
}

// packPrivateKeys packs private material into bytes.
// Format: [ed25519_len:4][ed25519][mldsa_len:4][mldsa][datakey_len:4][datakey]
func packPrivateKeys(k *DeviceKeys) []byte {
	edBytes := []byte(k.Ed25519Private)
	mldsaBytes, _ := k.MLDSAPrivate.MarshalBinary()

	total := 12 + len(edBytes) + len(mldsaBytes) + len(k.DataKey)
	buf := make([]byte, total)

	offset := 0
	writeLen(buf[offset:], len(edBytes))
	offset += 4
	copy(buf[offset:], edBytes)
	offset += len(edBytes)

	writeLen(buf[offset:], len(mldsaBytes))
	offset += 4
	copy(buf[offset:], mldsaBytes)
	offset += len(mldsaBytes)

	writeLen(buf[offset:], len(k.DataKey))
	offset += 4
	copy(buf[offset:], k.DataKey)

	return buf
}

func unpackPrivateKeys(data []byte) (*DeviceKeys, error) {
	keys := &DeviceKeys{}
	offset := 0

	if offset+4 > len(data) {
		return nil, errors.New("invalid private key data: too short for Ed25519 length")
	}
	edLen := readLen(data[offset:])
	offset += 4
	if offset+edLen > len(data) {
		return nil, errors.New("invalid private key data: too short for Ed25519 key")
	}
	keys.Ed25519Private = make(ed25519.PrivateKey, edLen)
	copy(keys.Ed25519Private, data[offset:offset+edLen])
	offset += edLen

	if offset+4 > len(data) {
		return nil, errors.New("invalid private key data: too short for ML-DSA length")
	}
	mldsaLen := readLen(data[offset:])
	offset += 4
	if offset+mldsaLen > len(data) {
		return nil, errors.New("invalid private key data: too short for ML-DSA key")
	}
	mldsaPriv := new(mldsa65.PrivateKey)
	if err := mldsaPriv.UnmarshalBinary(data[offset : offset+mldsaLen]); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ML-DSA key: %w", err)
	}
	keys.MLDSAPrivate = *mldsaPriv
	offset += mldsaLen

	if offset+4 > len(data) {
		return nil, errors.New("invalid private key data: too short for data key length")
	}
	dkLen := readLen(data[offset:])
	offset += 4
	if offset+dkLen > len(data) {
		return nil, errors.New("invalid private key data: too short for data key")
	}
	keys.DataKey = make([]byte, dkLen)
	copy(keys.DataKey, data[offset:offset+dkLen])

	return keys, nil
}

func writeLen(buf []byte, length int) {
	buf[0] = byte(length >> 24)
	buf[1] = byte(length >> 16)
	buf[2] = byte(length >> 8)
	buf[3] = byte(length)
}

func readLen(buf []byte) int {
	return int(buf[0])<<24 | int(buf[1])<<16 | int(buf[2])<<8 | int(buf[3])
}

// -----------------------------------------------------------------------------
// Signing operations
// -----------------------------------------------------------------------------

// SignHybrid signs data with both Ed25519 and ML-DSA-65. Outbox envelopes
// carry both signatures so a future sync peer can verify with either scheme.
func (k *DeviceKeys) SignHybrid(data []byte) (ed25519Sig, mldsaSig []byte, err error) {
	ed25519Sig = ed25519.Sign(k.Ed25519Private, data)

	mldsaSig = make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(&k.MLDSAPrivate, data, nil, false, mldsaSig); err != nil {
		return nil, nil, fmt.Errorf("ML-DSA signing failed: %w", err)
	}

	return ed25519Sig, mldsaSig, nil
}

// VerifyHybrid verifies both signatures.
func (k *DeviceKeys) VerifyHybrid(data, ed25519Sig, mldsaSig []byte) bool {
	ed25519Valid := ed25519.Verify(k.Ed25519Public, data, ed25519Sig)
	mldsaValid := mldsa65.Verify(&k.MLDSAPublic, data, nil, mldsaSig)
	return ed25519Valid && mldsaValid
}

// -----------------------------------------------------------------------------
// Credential encryption
// -----------------------------------------------------------------------------

// Encrypt seals data with the device data key.
func (k *DeviceKeys) Encrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(k.DataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, data, nil), nil
}

// Decrypt opens data sealed by Encrypt.
func (k *DeviceKeys) Decrypt(data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(k.DataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return nil, errors.New("invalid encrypted data")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("decryption failed")
	}
	return plain, nil
}
