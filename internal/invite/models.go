// Package invite tracks the invite codes gating new shadow-account creation.
// Codes are created out of band by operators; this package only matches and
// spends them.
package invite

import "time"

// Binding is the two-mode owner restriction of an invite: unbound codes are
// usable by anyone who holds them, bound codes only by one account.
type Binding struct {
	accountID string
	bound     bool
}

// Unbound returns the anyone-may-redeem binding.
func Unbound() Binding { return Binding{} }

// BoundTo restricts the invite to a single account id.
func BoundTo(accountID string) Binding {
	return Binding{accountID: accountID, bound: true}
}

// Account returns the bound account id and whether a binding exists.
func (b Binding) Account() (string, bool) { return b.accountID, b.bound }

// Matches reports whether accountID may redeem an invite with this binding.
func (b Binding) Matches(accountID string) bool {
	return !b.bound || b.accountID == accountID
}

// Invite is one redeemable code with a finite attempt budget. Invites are
// never deleted; redemption decrements Attempts and the row stays as history.
type Invite struct {
	ID        int64
	Code      string
	Binding   Binding
	Attempts  int64
	Creator   string
	CreatedAt time.Time
}
