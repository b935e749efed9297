package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// signatureField decodes the signature from either wire shape the wallet
// frontends use: a comma-separated decimal byte string ("12,255,...") or a
// JSON array of numbers.
type signatureField []byte

func (f *signatureField) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err == nil {
		out := make([]byte, len(nums))
		for i, n := range nums {
			if n < 0 || n > 255 {
				return fmt.Errorf("signature byte %d out of range", n)
			}
			out[i] = byte(n)
		}
		*f = out
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("signature must be a byte array or comma-separated string")
	}
	parts := strings.Split(s, ",")
	out := make([]byte, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 255 {
			return fmt.Errorf("signature byte %q invalid", part)
		}
		out[i] = byte(n)
	}
	*f = out
	return nil
}

type verifyRequest struct {
	PublicKey string         `json:"publicKey"`
	Signature signatureField `json:"signature"`
	AccountID string         `json:"account_id"`
	Invite    string         `json:"invite"`
}

type accountExistsRequest struct {
	AccountID string `json:"account_id"`
}

type checkInviteRequest struct {
	Invite    string `json:"invite"`
	AccountID string `json:"account_id"`
}

type challengeResponse struct {
	Code string `json:"code"`
}

type checkInviteResponse struct {
	ID int64 `json:"id"`
}
