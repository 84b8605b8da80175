// Package security provides optional at-rest encryption of memory content.
// It is adapted from the teacher's internal/security package, trimmed to
// the AES-GCM envelope it used for field-level encryption; the teacher's
// end-user auth, access control, and audit logging live in that package
// too, but authentication is explicitly out of scope here.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Manager encrypts and decrypts memory content with a master key derived
// from an operator-supplied passphrase. A zero-value Manager (or one built
// from an empty passphrase) is disabled and passes content through
// unchanged, so callers never need a separate enabled/disabled branch.
type Manager struct {
	enabled    bool
	masterKey  []byte
	saltLength int
	keyLength  int
	iterations int
}

// envelope is the wire shape of one encrypted value, serialized to a single
// string so it can be stored wherever plaintext content used to go.
type envelope struct {
	Algorithm string `json:"algorithm"`
	Salt      string `json:"salt,omitempty"`
	IV        string `json:"iv,omitempty"`
	Data      string `json:"data"`
}

// NewManager builds a Manager. An empty masterPassword disables encryption.
func NewManager(masterPassword string) *Manager {
	m := &Manager{
		enabled:    masterPassword != "",
		saltLength: 32,
		keyLength:  32,
		iterations: 100000,
	}
	if m.enabled {
		m.masterKey = []byte(masterPassword)
	}
	return m
}

// IsEnabled reports whether content actually gets encrypted.
func (m *Manager) IsEnabled() bool { return m.enabled }

// EncryptForStorage returns plaintext encoded as a self-describing envelope
// string. When encryption is disabled it returns plaintext verbatim so
// storage and wire formats stay identical either way.
func (m *Manager) EncryptForStorage(plaintext string) (string, error) {
	if !m.enabled {
		return plaintext, nil
	}
	if plaintext == "" {
		return "", nil
	}

	salt := make([]byte, m.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key(m.masterKey, salt, m.iterations, m.keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	ciphertext := gcm.Seal(nil, iv, []byte(plaintext), nil)

	env := envelope{
		Algorithm: "aes-gcm",
		Salt:      base64.StdEncoding.EncodeToString(salt),
		IV:        base64.StdEncoding.EncodeToString(iv),
		Data:      base64.StdEncoding.EncodeToString(ciphertext),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(raw), nil
}

// DecryptFromStorage reverses EncryptForStorage. When encryption is
// disabled it returns stored verbatim, matching EncryptForStorage's
// pass-through behavior.
func (m *Manager) DecryptFromStorage(stored string) (string, error) {
	if !m.enabled || stored == "" {
		return stored, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(stored), &env); err != nil {
		return "", fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Algorithm != "aes-gcm" {
		return "", errors.New("unsupported encryption algorithm: " + env.Algorithm)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", fmt.Errorf("decode iv: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	key := pbkdf2.Key(m.masterKey, salt, m.iterations, m.keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
