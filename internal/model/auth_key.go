// internal/model/auth_key.go
package model

import (
	"encoding/json"
	"fmt"

	custom_errors "project-sync/internal/errors"
)

const (
	authKeyGeneratedTag = "generated"
	authKeyLocalTag     = "local"
)

// AuthKey selects how git transport for a project is authenticated.
// The implementations are GeneratedKey and LocalKey; no other type satisfies it.
type AuthKey interface {
	isAuthKey()
}

// GeneratedKey defers to the managed key mechanism. It is the default.
type GeneratedKey struct{}

// LocalKey points at a private key file on disk. Passphrase is nil when the key is not encrypted.
// Neither the path nor the passphrase is checked here; the consumer of the key reports those failures.
type LocalKey struct {
	PrivateKeyPath string
	Passphrase     *string
}

func (GeneratedKey) isAuthKey() {}
func (LocalKey) isAuthKey()     {}

// DefaultAuthKey returns the key used when a project has not chosen one.
func DefaultAuthKey() AuthKey {
	return GeneratedKey{}
}

// NewLocalKey builds a LocalKey. An empty passphrase is treated as no passphrase.
func NewLocalKey(privateKeyPath, passphrase string) LocalKey {
	k := LocalKey{PrivateKeyPath: privateKeyPath}
	if passphrase != "" {
		k.Passphrase = &passphrase
	}
	return k
}

// NormalizeAuthKey returns k with pointer variants replaced by their value form,
// so a type switch over GeneratedKey and LocalKey is exhaustive. A nil *LocalKey becomes nil.
func NormalizeAuthKey(k AuthKey) AuthKey {
	switch k := k.(type) {
	case *GeneratedKey:
		return GeneratedKey{}
	case *LocalKey:
		if k == nil {
			return nil
		}
		return *k
	default:
		return k
	}
}

type localKeyJSON struct {
	PrivateKeyPath string  `json:"privateKeyPath"`
	Passphrase     *string `json:"passphrase"`
}

// MarshalAuthKey encodes k as an externally tagged union. A nil key encodes as "generated".
func MarshalAuthKey(k AuthKey) ([]byte, error) {
	switch k := NormalizeAuthKey(k).(type) {
	case nil, GeneratedKey:
		return json.Marshal(authKeyGeneratedTag)
	case LocalKey:
		return json.Marshal(map[string]localKeyJSON{
			authKeyLocalTag: {PrivateKeyPath: k.PrivateKeyPath, Passphrase: k.Passphrase},
		})
	default:
		return nil, fmt.Errorf("encode auth key: unsupported type %T", k)
	}
}

// UnmarshalAuthKey decodes an AuthKey. Absent or null input yields the default key.
func UnmarshalAuthKey(data []byte) (AuthKey, error) {
	if isNull(data) {
		return DefaultAuthKey(), nil
	}

	tag, body, err := decodeTag("auth key", data)
	if err != nil {
		return nil, err
	}

	switch tag {
	case authKeyGeneratedTag:
		return GeneratedKey{}, nil
	case authKeyLocalTag:
		if isNull(body) {
			return nil, fmt.Errorf("decode auth key: %q variant has no body", tag)
		}
		fields, err := decodeFields("local auth key", body)
		if err != nil {
			return nil, err
		}
		path, err := decodeString(fields, "privateKeyPath", "private_key_path")
		if err != nil {
			return nil, err
		}
		passphrase, err := decodeOptionalString(fields, "passphrase")
		if err != nil {
			return nil, err
		}
		return LocalKey{PrivateKeyPath: path, Passphrase: passphrase}, nil
	default:
		return nil, &custom_errors.ErrUnknownVariant{Type: "auth key", Tag: tag}
	}
}
