package verify

import "encoding/json"

// Request is one verification round: the claimed key, the detached signature
// over the challenge digest, the NEAR account, and an optional invite code.
// When the invite is empty it defaults to the account id itself, so an
// account-bound invite can be implied by the account.
type Request struct {
	PublicKey string
	Signature []byte
	AccountID string
	Invite    string
}

// Response is the terminal payload of a verification round. Every request
// produces exactly one Response; failures are payloads, not transport faults.
type Response struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

func failure(message string) Response {
	return Response{Status: false, Message: message}
}

func success(username string) Response {
	payload, _ := json.Marshal(struct {
		Username string `json:"username"`
	}{username})
	return Response{Status: true, Message: string(payload)}
}
