package cryptox

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KeyProvider supplies the 256-bit symmetric key used by the Codec. It is an
// explicit capability injected into the Codec and the sync service so tests
// can use deterministic keys; there is no process-global key.
type KeyProvider interface {
	Key() ([]byte, error)
}

// StaticKey is a fixed key, used by tests and by callers that manage key
// material themselves.
type StaticKey []byte

func (k StaticKey) Key() ([]byte, error) {
	if len(k) != KeySize {
		return nil, fmt.Errorf("static key must be %d bytes, got %d", KeySize, len(k))
	}
	return []byte(k), nil
}

// DerivedKey hashes a configured secret into the cipher key with argon2id.
// Both sides of a deployment derive the same key from the same secret and
// salt, which is what makes client-side encryption interoperable with the
// server's at-rest pass.
type DerivedKey struct {
	Secret []byte
	Salt   []byte
}

func (d DerivedKey) Key() ([]byte, error) {
	if len(d.Secret) == 0 {
		return nil, fmt.Errorf("empty crypto secret")
	}
	if len(d.Salt) == 0 {
		return nil, fmt.Errorf("empty crypto salt")
	}
	return argon2.IDKey(d.Secret, d.Salt, 1, 64*1024, 4, KeySize), nil
}
