package cryptox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	return NewCodec(StaticKey(bytes.Repeat([]byte{0x42}, KeySize)))
}

func strp(s string) *string { return &s }

func TestEncryptField_RoundTrip(t *testing.T) {
	c := testCodec(t)

	token, err := c.EncryptField(strp("went hiking with Ann"))
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.True(t, IsEncrypted(*token))
	assert.Len(t, strings.Split(*token, ":"), 4)

	plain, err := c.DecryptField(token)
	require.NoError(t, err)
	require.NotNil(t, plain)
	assert.Equal(t, "went hiking with Ann", *plain)
}

func TestEncryptField_NilAndIdempotent(t *testing.T) {
	c := testCodec(t)

	out, err := c.EncryptField(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	token, err := c.EncryptField(strp("once"))
	require.NoError(t, err)

	again, err := c.EncryptField(token)
	require.NoError(t, err)
	assert.Equal(t, token, again)
}

func TestEncryptField_FreshNoncePerCall(t *testing.T) {
	c := testCodec(t)

	t1, err := c.EncryptField(strp("same value"))
	require.NoError(t, err)
	t2, err := c.EncryptField(strp("same value"))
	require.NoError(t, err)

	assert.NotEqual(t, *t1, *t2)
}

func TestDecryptField_PassthroughPlaintext(t *testing.T) {
	c := testCodec(t)

	out, err := c.DecryptField(strp("never encrypted"))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "never encrypted", *out)

	out, err = c.DecryptField(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecryptField_MalformedToken(t *testing.T) {
	c := testCodec(t)

	tests := []struct {
		name  string
		token string
	}{
		{"too few parts", "enc:AAAA:BBBB"},
		{"too many parts", "enc:AAAA:BBBB:CCCC:DDDD"},
		{"bad base64 nonce", "enc:!!!:BBBB:CCCC"},
		{"short nonce", "enc:AAAA:BBBB:CCCC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecryptField(&tt.token)
			assert.ErrorIs(t, err, common.ErrDecode)
		})
	}
}

func TestDecryptField_TamperedCiphertext(t *testing.T) {
	c := testCodec(t)

	token, err := c.EncryptField(strp("sensitive"))
	require.NoError(t, err)

	parts := strings.Split(*token, ":")
	require.Len(t, parts, 4)

	// flip the ciphertext
	tampered := strings.Join([]string{parts[0], parts[1], parts[2], parts[3][:len(parts[3])-4] + "AAA="}, ":")
	_, err = c.DecryptField(&tampered)
	assert.ErrorIs(t, err, common.ErrDecode)

	// flip the tag
	tampered = strings.Join([]string{parts[0], parts[1], parts[2][:len(parts[2])-4] + "AAA=", parts[3]}, ":")
	_, err = c.DecryptField(&tampered)
	assert.ErrorIs(t, err, common.ErrDecode)
}

func TestDecryptField_WrongKey(t *testing.T) {
	c1 := NewCodec(StaticKey(bytes.Repeat([]byte{0x01}, KeySize)))
	c2 := NewCodec(StaticKey(bytes.Repeat([]byte{0x02}, KeySize)))

	token, err := c1.EncryptField(strp("secret"))
	require.NoError(t, err)

	_, err = c2.DecryptField(token)
	assert.ErrorIs(t, err, common.ErrDecode)
}

func TestDecryptNumber(t *testing.T) {
	c := testCodec(t)

	token, err := c.EncryptField(strp("7.5"))
	require.NoError(t, err)

	f, err := c.DecryptNumber(token)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 7.5, *f)

	// decrypts fine but is not a number: nil without error
	token, err = c.EncryptField(strp("not a number"))
	require.NoError(t, err)
	f, err = c.DecryptNumber(token)
	require.NoError(t, err)
	assert.Nil(t, f)

	// tampering still hard-fails
	bad := "enc:AAAA:BBBB"
	_, err = c.DecryptNumber(&bad)
	assert.ErrorIs(t, err, common.ErrDecode)

	f, err = c.DecryptNumber(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestDerivedKey_Deterministic(t *testing.T) {
	d1 := DerivedKey{Secret: []byte("secret-password"), Salt: []byte("fixed-salt")}
	d2 := DerivedKey{Secret: []byte("secret-password"), Salt: []byte("fixed-salt")}

	key1, err := d1.Key()
	require.NoError(t, err)
	key2, err := d2.Key()
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, KeySize)

	d3 := DerivedKey{Secret: []byte("secret-password"), Salt: []byte("other-salt")}
	key3, err := d3.Key()
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)
}

func TestDerivedKey_RequiresSecretAndSalt(t *testing.T) {
	_, err := DerivedKey{Salt: []byte("salt")}.Key()
	assert.Error(t, err)

	_, err = DerivedKey{Secret: []byte("secret")}.Key()
	assert.Error(t, err)
}

func TestStaticKey_SizeCheck(t *testing.T) {
	_, err := StaticKey([]byte("short")).Key()
	assert.Error(t, err)
}
