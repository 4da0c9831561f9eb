package secrets_test

import (
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vitatrack/auth-server/internal/errors"
	"github.com/vitatrack/auth-server/secrets"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewCodecRejectsShortKey(t *testing.T) {
	_, err := secrets.NewCodec([]byte("too-short"))
	require.ErrorIs(t, err, errors.ErrCrypto)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec, err := secrets.NewCodec(testKey(t))
	require.NoError(t, err)

	sealed, err := codec.Encrypt("super-secret-client-secret")
	require.NoError(t, err)
	require.False(t, sealed.IsZero())
	require.NotContains(t, sealed.Ciphertext, "super-secret")

	plaintext, err := codec.Decrypt(sealed)
	require.NoError(t, err)
	require.Equal(t, "super-secret-client-secret", plaintext)
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	codec, err := secrets.NewCodec(testKey(t))
	require.NoError(t, err)

	a, err := codec.Encrypt("same input")
	require.NoError(t, err)
	b, err := codec.Encrypt("same input")
	require.NoError(t, err)

	require.NotEqual(t, a.Nonce, b.Nonce)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptFailsClosed(t *testing.T) {
	codec, err := secrets.NewCodec(testKey(t))
	require.NoError(t, err)

	sealed, err := codec.Encrypt("secret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(s secrets.SealedSecret) secrets.SealedSecret
	}{
		{
			name: "tampered ciphertext",
			mutate: func(s secrets.SealedSecret) secrets.SealedSecret {
				raw, _ := hex.DecodeString(s.Ciphertext)
				raw[0] ^= 0xff
				s.Ciphertext = hex.EncodeToString(raw)
				return s
			},
		},
		{
			name: "tampered tag",
			mutate: func(s secrets.SealedSecret) secrets.SealedSecret {
				raw, _ := hex.DecodeString(s.Tag)
				raw[0] ^= 0xff
				s.Tag = hex.EncodeToString(raw)
				return s
			},
		},
		{
			name: "tampered nonce",
			mutate: func(s secrets.SealedSecret) secrets.SealedSecret {
				raw, _ := hex.DecodeString(s.Nonce)
				raw[0] ^= 0xff
				s.Nonce = hex.EncodeToString(raw)
				return s
			},
		},
		{
			name: "non-hex ciphertext",
			mutate: func(s secrets.SealedSecret) secrets.SealedSecret {
				s.Ciphertext = "zz-not-hex"
				return s
			},
		},
		{
			name: "truncated nonce",
			mutate: func(s secrets.SealedSecret) secrets.SealedSecret {
				s.Nonce = s.Nonce[:4]
				return s
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := codec.Decrypt(tc.mutate(sealed))
			require.ErrorIs(t, err, errors.ErrCrypto)
		})
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	codecA, err := secrets.NewCodec(testKey(t))
	require.NoError(t, err)
	codecB, err := secrets.NewCodec(testKey(t))
	require.NoError(t, err)

	sealed, err := codecA.Encrypt("secret")
	require.NoError(t, err)

	_, err = codecB.Decrypt(sealed)
	require.ErrorIs(t, err, errors.ErrCrypto)
}
