package template

import (
	"github.com/firefly-engineering/hutch/internal/errors"
	"github.com/firefly-engineering/hutch/internal/spec"
	"github.com/firefly-engineering/hutch/internal/vault"
)

// Encrypter encrypts secret values.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// EncryptDocument encrypts every plaintext value under the secrets block of
// a spec document and returns the rewritten document and the number of
// values encrypted. Values that are already encrypted, and every byte
// outside the rewritten values, are left untouched, so running it on its own
// output returns the same bytes.
func EncryptDocument(data []byte, format spec.Format, e Encrypter) ([]byte, int, error) {
	sites, err := spec.SecretSites(data, format)
	if err != nil {
		return nil, 0, errors.ConfigError("failed to locate secrets", err)
	}

	var changed []spec.Site
	var values []string
	for _, s := range sites {
		if vault.IsEncrypted(s.Value) {
			continue
		}
		ct, err := e.Encrypt(s.Value)
		if err != nil {
			return nil, 0, errors.TemplateError("secrets."+s.Key, "failed to encrypt", err)
		}
		changed = append(changed, s)
		values = append(values, ct)
	}

	if len(changed) == 0 {
		return data, 0, nil
	}
	return spec.Rewrite(data, changed, values), len(changed), nil
}

// DecryptDocument is the inverse of EncryptDocument: every encrypted value
// under the secrets block is replaced by its plaintext.
func DecryptDocument(data []byte, format spec.Format, d Decrypter) ([]byte, int, error) {
	sites, err := spec.SecretSites(data, format)
	if err != nil {
		return nil, 0, errors.ConfigError("failed to locate secrets", err)
	}

	var changed []spec.Site
	var values []string
	for _, s := range sites {
		if !vault.IsEncrypted(s.Value) {
			continue
		}
		plain, err := d.Decrypt(s.Value)
		if err != nil {
			return nil, 0, errors.TemplateError("secrets."+s.Key, "failed to decrypt", err)
		}
		changed = append(changed, s)
		values = append(values, plain)
	}

	if len(changed) == 0 {
		return data, 0, nil
	}
	return spec.Rewrite(data, changed, values), len(changed), nil
}
