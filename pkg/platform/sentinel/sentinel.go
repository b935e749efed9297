package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrExhausted: invite has no redemption attempts left
// - ErrUnavailable: storage or remote service temporarily unreachable
//
// For user input problems use pkg/domain-errors directly.
var (
	ErrExhausted   = errors.New("exhausted")
	ErrUnavailable = errors.New("unavailable")
)
