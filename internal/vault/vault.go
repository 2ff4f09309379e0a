// Package vault encrypts and decrypts workspace secrets with age.
//
// Ciphertexts are ASCII-armored age messages with every newline replaced by
// '|' so a secret fits on one line of a YAML or TOML document. The X25519
// identity lives in the global age-key volume; a file override can stand in
// for it.
package vault

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"
)

// Header starts every armored ciphertext.
const Header = armor.Header

// DecryptionError reports a ciphertext that could not be decrypted with the
// current identity, or one that is malformed.
type DecryptionError struct {
	Cause error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Cause)
}

func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

// Vault holds one age identity and its recipient.
type Vault struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// New creates a vault from an identity.
func New(identity *age.X25519Identity) *Vault {
	return &Vault{identity: identity, recipient: identity.Recipient()}
}

// Parse creates a vault from identity file content, which may carry comment
// lines. The first X25519 identity is used.
func Parse(data []byte) (*Vault, error) {
	ids, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse age identity: %w", err)
	}
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			return New(x), nil
		}
	}
	return nil, errors.New("no X25519 identity found")
}

// Recipient returns the public key secrets are encrypted to.
func (v *Vault) Recipient() string {
	return v.recipient.String()
}

// IsEncrypted reports whether value is a vault ciphertext.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), Header)
}

// Encrypt returns the single-line armored ciphertext of plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, v.recipient)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("failed to armor ciphertext: %w", err)
	}

	return strings.ReplaceAll(strings.TrimRight(buf.String(), "\n"), "\n", "|"), nil
}

// Decrypt returns the plaintext of a ciphertext produced by Encrypt.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if !IsEncrypted(ciphertext) {
		return "", &DecryptionError{Cause: errors.New("value is not an age ciphertext")}
	}

	armored := strings.ReplaceAll(strings.TrimSpace(ciphertext), "|", "\n") + "\n"
	r, err := age.Decrypt(armor.NewReader(strings.NewReader(armored)), v.identity)
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", &DecryptionError{Cause: err}
	}
	return string(out), nil
}
