package nearclient

import (
	"encoding/json"
	"fmt"
)

// AccessKey is one entry of an account's on-chain access key list.
type AccessKey struct {
	PublicKey string        `json:"public_key"`
	AccessKey AccessKeyInfo `json:"access_key"`
}

// AccessKeyInfo carries the key's nonce and permission scope.
type AccessKeyInfo struct {
	Nonce      uint64     `json:"nonce"`
	Permission Permission `json:"permission"`
}

// Permission is either full access or a function-call grant scoped to one
// receiver contract. On the wire it is the string "FullAccess" or an object
// {"FunctionCall": {...}}, so it needs custom JSON handling.
type Permission struct {
	FullAccess   bool
	FunctionCall *FunctionCallPermission
}

// FunctionCallPermission scopes a key to calls on a single receiver contract.
type FunctionCallPermission struct {
	Allowance   string   `json:"allowance"`
	ReceiverID  string   `json:"receiver_id"`
	MethodNames []string `json:"method_names"`
}

func (p *Permission) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "FullAccess" {
			return fmt.Errorf("unknown permission %q", s)
		}
		*p = Permission{FullAccess: true}
		return nil
	}
	var obj struct {
		FunctionCall *FunctionCallPermission `json:"FunctionCall"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode permission: %w", err)
	}
	if obj.FunctionCall == nil {
		return fmt.Errorf("permission object missing FunctionCall")
	}
	*p = Permission{FunctionCall: obj.FunctionCall}
	return nil
}

func (p Permission) MarshalJSON() ([]byte, error) {
	if p.FullAccess {
		return json.Marshal("FullAccess")
	}
	return json.Marshal(struct {
		FunctionCall *FunctionCallPermission `json:"FunctionCall"`
	}{p.FunctionCall})
}
