package challenge

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyPair(t *testing.T) (string, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return "ed25519:" + base58.Encode(pub), priv
}

func TestVerify(t *testing.T) {
	pubStr, priv := newKeyPair(t)
	sig := ed25519.Sign(priv, Digest())

	t.Run("valid signature over challenge digest", func(t *testing.T) {
		ok, err := Verify(pubStr, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("bare base58 key without prefix", func(t *testing.T) {
		ok, err := Verify(pubStr[len("ed25519:"):], sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("single flipped byte invalidates", func(t *testing.T) {
		for i := 0; i < len(sig); i += 7 {
			mutated := append([]byte(nil), sig...)
			mutated[i] ^= 0x01
			ok, err := Verify(pubStr, mutated)
			require.NoError(t, err)
			assert.False(t, ok, "byte %d", i)
		}
	})

	t.Run("signature over plaintext instead of digest fails", func(t *testing.T) {
		wrong := ed25519.Sign(priv, []byte(Message))
		ok, err := Verify(pubStr, wrong)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("malformed key fails closed", func(t *testing.T) {
		ok, err := Verify("ed25519:0O0O0O", sig)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrMalformedPublicKey)
	})

	t.Run("wrong curve prefix rejected", func(t *testing.T) {
		ok, err := Verify("secp256k1:abc", sig)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrUnsupportedKeyType)
	})

	t.Run("truncated key rejected", func(t *testing.T) {
		short := "ed25519:" + base58.Encode([]byte{1, 2, 3})
		ok, err := Verify(short, sig)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrMalformedPublicKey)
	})

	t.Run("truncated signature rejected", func(t *testing.T) {
		ok, err := Verify(pubStr, sig[:32])
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrBadSignatureSize)
	})
}

func TestDerivePassword(t *testing.T) {
	_, priv := newKeyPair(t)
	sig := ed25519.Sign(priv, Digest())

	t.Run("deterministic sixteen characters", func(t *testing.T) {
		first, err := DerivePassword(sig)
		require.NoError(t, err)
		second, err := DerivePassword(sig)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Len(t, first, 16)
	})

	t.Run("different signatures diverge", func(t *testing.T) {
		_, otherPriv := newKeyPair(t)
		otherSig := ed25519.Sign(otherPriv, Digest())
		a, err := DerivePassword(sig)
		require.NoError(t, err)
		b, err := DerivePassword(otherSig)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("short signature is an error, never a short password", func(t *testing.T) {
		_, err := DerivePassword(sig[:16])
		assert.Error(t, err)
	})
}
