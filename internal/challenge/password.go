package challenge

import (
	"encoding/base64"
	"fmt"
)

// Password slice of the base64-encoded signature. A 64-byte Ed25519 signature
// encodes to 88 base64 characters, so [70, 86) is always in range for valid
// signatures.
const (
	passwordOffset = 70
	passwordLength = 16
)

// DerivePassword maps a signature to the 16-character shadow-account password.
// The mapping is deterministic on purpose: the user can always re-derive it by
// re-signing the challenge with the same key. It is a convenience mapping, not
// a key-derivation function; its unpredictability is exactly the signature's.
//
// A signature too short for the slice means the challenge scheme itself is
// misconfigured, so the error is surfaced instead of truncating the password.
func DerivePassword(signature []byte) (string, error) {
	encoded := base64.StdEncoding.EncodeToString(signature)
	if len(encoded) < passwordOffset+passwordLength {
		return "", fmt.Errorf("challenge: signature of %d bytes is too short to derive a password", len(signature))
	}
	return encoded[passwordOffset : passwordOffset+passwordLength], nil
}
