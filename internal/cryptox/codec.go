// Package cryptox implements the field-level crypto codec: AES-256-GCM over
// individual field values, with a self-describing delimited token format so
// historical unencrypted rows keep decoding.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/daybook/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	nonceSize = 12
	tagSize   = 16

	tokenSentinel = "enc"
	tokenSep      = ":"
)

// Codec encrypts and decrypts individual field values. It is stateless given
// its KeyProvider and safe for concurrent use.
type Codec struct {
	keys KeyProvider
}

func NewCodec(keys KeyProvider) *Codec {
	return &Codec{keys: keys}
}

// IsEncrypted reports whether v carries the token sentinel.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, tokenSentinel+tokenSep)
}

func (c *Codec) aead() (cipher.AEAD, error) {
	key, err := c.keys.Key()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfig, err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptField turns a plaintext value into an "enc:<nonce>:<tag>:<ciphertext>"
// token (all parts std base64). Nil stays nil, and a value that is already a
// token is returned unchanged, so re-encoding an already-encoded row is a
// no-op.
func (c *Codec) EncryptField(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	if IsEncrypted(*v) {
		return v, nil
	}

	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, nonce, []byte(*v), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	b64 := base64.StdEncoding
	token := strings.Join([]string{
		tokenSentinel,
		b64.EncodeToString(nonce),
		b64.EncodeToString(tag),
		b64.EncodeToString(ciphertext),
	}, tokenSep)
	return &token, nil
}

// DecryptField reverses EncryptField. Nil stays nil and a value without the
// sentinel is returned unchanged (historical unencrypted rows). A token that
// does not split into exactly four parts, fails base64 decoding, or fails tag
// verification yields common.ErrDecode; corrupted plaintext is never returned.
func (c *Codec) DecryptField(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	if !IsEncrypted(*v) {
		return v, nil
	}

	parts := strings.Split(*v, tokenSep)
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w: token has %d parts, want 4", common.ErrDecode, len(parts))
	}

	b64 := base64.StdEncoding
	nonce, err := b64.DecodeString(parts[1])
	if err != nil || len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: bad nonce", common.ErrDecode)
	}
	tag, err := b64.DecodeString(parts[2])
	if err != nil || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: bad tag", common.ErrDecode)
	}
	ciphertext, err := b64.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext", common.ErrDecode)
	}

	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", common.ErrDecode)
	}

	s := string(plaintext)
	return &s, nil
}

// DecryptNumber decrypts a numeric field stored as UTF-8 text. Numeric fields
// are best effort: a value that decrypts but does not parse yields nil without
// error. Tamper and wrong-key failures still hard-fail.
func (c *Codec) DecryptNumber(v *string) (*float64, error) {
	s, err := c.DecryptField(v)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil, nil
	}
	return &f, nil
}
