// Package challenge implements the proof-of-key-possession primitives: the
// shared challenge message, Ed25519 signature verification against NEAR
// canonical public keys, and the deterministic password derivation.
package challenge

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Message is the plaintext every client signs. It is process-wide and never
// rotates; possession of a key is proven by signing its SHA-256 digest.
const Message = "Future Is NEAR"

// Errors returned for malformed proof material. All of them fail closed: a key
// that cannot be parsed is treated as a verification failure, never a crash.
var (
	ErrMalformedPublicKey = errors.New("challenge: malformed public key")
	ErrUnsupportedKeyType = errors.New("challenge: unsupported key type")
	ErrBadSignatureSize   = errors.New("challenge: bad signature size")
)

// Digest returns the SHA-256 digest of the challenge message. The digest is
// recomputed per call; the plaintext is the constant.
func Digest() []byte {
	sum := sha256.Sum256([]byte(Message))
	return sum[:]
}

// ParsePublicKey decodes a NEAR canonical public key string. The accepted
// forms are "ed25519:<base58>" and bare "<base58>"; any other curve prefix is
// rejected.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	data := s
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		if s[:idx] != "ed25519" {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, s[:idx])
		}
		data = s[idx+1:]
	}
	raw, err := base58.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPublicKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPublicKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verify reports whether signature was produced over the challenge digest by
// the private key matching publicKey. Malformed inputs return false with a
// typed error rather than propagating a parse failure.
func Verify(publicKey string, signature []byte) (bool, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	if len(signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: %d bytes", ErrBadSignatureSize, len(signature))
	}
	return ed25519.Verify(pub, Digest(), signature), nil
}
