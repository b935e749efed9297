// Package verify is the verification orchestrator: it ties signature
// checking, account-id validation, on-chain key authorization, the invite
// ledger, and shadow-account provisioning into one state machine per request.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zavodil/near-social-auth/internal/audit"
	"github.com/zavodil/near-social-auth/internal/challenge"
	"github.com/zavodil/near-social-auth/internal/invite"
	"github.com/zavodil/near-social-auth/internal/nearclient"
	"github.com/zavodil/near-social-auth/internal/social"
	"github.com/zavodil/near-social-auth/pkg/platform/middleware/metadata"
	"github.com/zavodil/near-social-auth/pkg/requestcontext"
)

var verifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "near_auth_verifications_total",
	Help: "Verification rounds by terminal outcome",
}, []string{"outcome", "reason"})

// usernamePattern constrains the account id's local part; the social backend
// rejects anything else anyway.
var usernamePattern = regexp.MustCompile(`(?i)^[a-z0-9_]+$`)

// Authorizer answers whether a public key is acceptable proof of control of
// an account for the application contract.
type Authorizer interface {
	IsAuthorized(ctx context.Context, accountID, publicKey string) (bool, error)
}

// SocialAPI is the slice of the social backend client the orchestrator uses.
type SocialAPI interface {
	GetAccount(ctx context.Context, username string) (*social.Account, error)
	CreateAccount(ctx context.Context, username, password string) error
	ApproveAccount(ctx context.Context, accountID string) error
	SetPassword(ctx context.Context, accountID, password string) error
}

// Service runs the verification state machine. All configuration is threaded
// in at construction; the service holds no mutable state across requests.
type Service struct {
	authorizer    Authorizer
	socialAPI     SocialAPI
	invites       invite.Store
	auditor       *audit.Publisher
	logger        *slog.Logger
	accountSuffix string
}

// NewService wires the orchestrator's collaborators. auditor may be nil to
// disable the audit trail.
func NewService(authorizer Authorizer, socialAPI SocialAPI, invites invite.Store, auditor *audit.Publisher, logger *slog.Logger, accountSuffix string) *Service {
	return &Service{
		authorizer:    authorizer,
		socialAPI:     socialAPI,
		invites:       invites,
		auditor:       auditor,
		logger:        logger,
		accountSuffix: accountSuffix,
	}
}

// Verify runs one verification round to its terminal response. It never
// returns an error: every internal fault is converted into a failure payload
// so the caller always gets exactly one response.
func (s *Service) Verify(ctx context.Context, req Request) Response {
	resp, reason := s.verify(ctx, req)

	outcome := audit.OutcomeRejected
	if resp.Status {
		outcome = audit.OutcomeSuccess
		reason = "ok"
	} else if reason == reasonInternal {
		outcome = audit.OutcomeError
	}
	verifications.WithLabelValues(outcome, reason).Inc()
	s.auditor.Emit(ctx, audit.Event{
		Timestamp: requestcontext.Now(ctx),
		RequestID: requestcontext.RequestID(ctx),
		AccountID: req.AccountID,
		Action:    "verify",
		Outcome:   outcome,
		Reason:    reason,
		ClientIP:  metadata.GetClientIP(ctx),
	})
	return resp
}

// Terminal reasons for metrics and the audit trail.
const (
	reasonBadSignature    = "bad_signature"
	reasonBadAccountID    = "bad_account_id"
	reasonInvalidInvite   = "invalid_invite"
	reasonKeyUnauthorized = "key_not_authorized"
	reasonUnknownAccount  = "unknown_account"
	reasonRemoteRejected  = "remote_rejected"
	reasonInternal        = "internal"
)

func (s *Service) verify(ctx context.Context, req Request) (Response, string) {
	// 1. Proof of key possession.
	ok, err := challenge.Verify(req.PublicKey, req.Signature)
	if err != nil {
		s.logger.InfoContext(ctx, "malformed proof material",
			"account_id", req.AccountID, "error", err)
		return failure("Signature verification failed"), reasonBadSignature
	}
	if !ok {
		return failure("Signature verification failed"), reasonBadSignature
	}

	// 2. Account id shape, before any network call.
	username, validationMsg := s.validateAccountID(req.AccountID)
	if validationMsg != "" {
		return failure(validationMsg), reasonBadAccountID
	}

	// 3. Existing shadow account decides the branch.
	account, err := s.socialAPI.GetAccount(ctx, username)
	if err != nil {
		return s.internalFailure(ctx, req.AccountID, "look up account", err)
	}

	// 4. New accounts are invite-gated. The invite is validated here but only
	// spent after the account is actually created, so a later failure does
	// not burn an attempt.
	var inviteID int64
	if account == nil {
		code := req.Invite
		if code == "" {
			code = req.AccountID
		}
		inviteID, err = s.invites.CheckInvite(ctx, code, req.AccountID)
		if err != nil {
			return s.internalFailure(ctx, req.AccountID, "check invite", err)
		}
		if inviteID == 0 {
			return failure("Invalid invite code"), reasonInvalidInvite
		}
	}

	// 5. The signing key must be a function-call key scoped to the contract.
	authorized, err := s.authorizer.IsAuthorized(ctx, req.AccountID, req.PublicKey)
	if err != nil {
		if errors.Is(err, nearclient.ErrUnknownAccount) {
			return failure("NEAR account not found"), reasonUnknownAccount
		}
		return s.internalFailure(ctx, req.AccountID, "check key authorization", err)
	}
	if !authorized {
		// The processing pipeline ends here explicitly; older frontends
		// tolerated this round simply timing out.
		return failure("key not authorized"), reasonKeyUnauthorized
	}

	// 6. The password is re-derivable by the user at will.
	password, err := challenge.DerivePassword(req.Signature)
	if err != nil {
		return s.internalFailure(ctx, req.AccountID, "derive password", err)
	}

	if account != nil {
		return s.reconcileExisting(ctx, req.AccountID, username, account, password)
	}
	return s.provisionNew(ctx, req.AccountID, username, password, inviteID)
}

// reconcileExisting is branch A: the shadow account already exists. Unapproved
// accounts get approved; approved accounts get their password rotated to the
// freshly derived value.
func (s *Service) reconcileExisting(ctx context.Context, accountID, username string, account *social.Account, password string) (Response, string) {
	if !account.Approved {
		if err := s.socialAPI.ApproveAccount(ctx, account.ID); err != nil {
			return s.provisioningFailure(ctx, accountID, "approve account", err)
		}
		s.logger.InfoContext(ctx, "account approved", "username", username, "social_id", account.ID)
		return success(username), ""
	}

	if err := s.socialAPI.SetPassword(ctx, account.ID, password); err != nil {
		return s.provisioningFailure(ctx, accountID, "set password", err)
	}
	s.logger.InfoContext(ctx, "password rotated", "username", username, "social_id", account.ID)
	return success(username), ""
}

// provisionNew is branch B: create the shadow account, approve it when the
// backend did not auto-approve, and only then spend the invite.
func (s *Service) provisionNew(ctx context.Context, accountID, username, password string, inviteID int64) (Response, string) {
	if err := s.socialAPI.CreateAccount(ctx, username, password); err != nil {
		return s.provisioningFailure(ctx, accountID, "create account", err)
	}
	s.logger.InfoContext(ctx, "account created", "username", username)

	account, err := s.socialAPI.GetAccount(ctx, username)
	if err != nil {
		return s.internalFailure(ctx, accountID, "re-fetch account", err)
	}
	if account != nil && !account.Approved {
		if err := s.socialAPI.ApproveAccount(ctx, account.ID); err != nil {
			return s.provisioningFailure(ctx, accountID, "approve account", err)
		}
		s.logger.InfoContext(ctx, "account approved", "username", username, "social_id", account.ID)
	}

	if err := s.invites.Spend(ctx, inviteID); err != nil {
		// The account exists at this point; a lost redemption is logged, not
		// turned into a user-facing failure.
		s.logger.ErrorContext(ctx, "invite spend failed after creation",
			"invite_id", inviteID, "account_id", accountID, "error", err)
	}
	return success(username), ""
}

// validateAccountID checks the naming-domain suffix and local-part charset,
// returning the derived username or a user-facing message.
func (s *Service) validateAccountID(accountID string) (username, message string) {
	if !strings.HasSuffix(accountID, s.accountSuffix) {
		return "", fmt.Sprintf("You can't login with implicit account or without `%s` ending.", s.accountSuffix)
	}
	username = accountID[:strings.LastIndex(accountID, ".")]
	if !usernamePattern.MatchString(username) {
		return "", "Validation failed: Username must contain only letters, numbers and underscores"
	}
	return username, ""
}

// provisioningFailure distinguishes backend error payloads, which are safe to
// relay, from transport faults, which are not.
func (s *Service) provisioningFailure(ctx context.Context, accountID, step string, err error) (Response, string) {
	var remote *social.RemoteError
	if errors.As(err, &remote) {
		s.logger.WarnContext(ctx, "social backend rejected "+step,
			"account_id", accountID, "error", remote.Message)
		return failure(remote.Message), reasonRemoteRejected
	}
	return s.internalFailure(ctx, accountID, step, err)
}

func (s *Service) internalFailure(ctx context.Context, accountID, step string, err error) (Response, string) {
	s.logger.ErrorContext(ctx, "verification failed: "+step,
		"account_id", accountID, "error", err)
	return failure(fmt.Sprintf("%s: %v", step, err)), reasonInternal
}

// AccountExists reports whether the shadow account for accountID's local part
// exists, with the approval flag serialized into the message the way the
// wallet frontend expects.
func (s *Service) AccountExists(ctx context.Context, accountID string) Response {
	idx := strings.LastIndex(accountID, ".")
	username := accountID
	if idx >= 0 {
		username = accountID[:idx]
	}

	account, err := s.socialAPI.GetAccount(ctx, username)
	if err != nil {
		s.logger.ErrorContext(ctx, "account existence check failed",
			"account_id", accountID, "error", err)
		return failure("{}")
	}
	if account == nil {
		return Response{Status: false, Message: "{}"}
	}
	payload, _ := json.Marshal(struct {
		Approved bool `json:"approved"`
	}{account.Approved})
	return Response{Status: true, Message: string(payload)}
}

// CheckInvite exposes the ledger lookup for the pre-flight endpoint.
func (s *Service) CheckInvite(ctx context.Context, code, accountID string) (int64, error) {
	return s.invites.CheckInvite(ctx, code, accountID)
}
