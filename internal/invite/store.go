package invite

import "context"

// Store is the invite ledger. Implementations must make Spend a single
// conditional update so two concurrent redemptions of the last attempt cannot
// both succeed.
type Store interface {
	// CheckInvite returns the id of a redeemable invite matching code whose
	// binding admits accountID, or 0 when none exists. Codes are expected
	// unique in practice but not constrained to be; with duplicates the
	// lowest-id match wins.
	CheckInvite(ctx context.Context, code, accountID string) (int64, error)

	// Spend consumes one redemption attempt. It returns sentinel.ErrExhausted
	// when the invite is missing or has no attempts left.
	Spend(ctx context.Context, id int64) error
}
