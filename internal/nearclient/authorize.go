package nearclient

import "context"

// KeyChecker decides whether a public key is acceptable proof of control of an
// account for the application contract.
type KeyChecker struct {
	lister     AccessKeyLister
	contractID string
}

// NewKeyChecker constructs a checker scoped to one contract id.
func NewKeyChecker(lister AccessKeyLister, contractID string) *KeyChecker {
	return &KeyChecker{lister: lister, contractID: contractID}
}

// IsAuthorized reports whether publicKey is one of accountID's access keys and
// is a function-call key whose receiver is the application contract. A
// full-access key does not qualify: the application only trusts keys the user
// minted specifically for it. ErrUnknownAccount passes through unchanged.
func (c *KeyChecker) IsAuthorized(ctx context.Context, accountID, publicKey string) (bool, error) {
	keys, err := c.lister.ListAccessKeys(ctx, accountID)
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		if key.PublicKey != publicKey {
			continue
		}
		fc := key.AccessKey.Permission.FunctionCall
		if fc != nil && fc.ReceiverID == c.contractID {
			return true, nil
		}
	}
	return false, nil
}
