// Package handler wires the verification endpoints. It is a thin HTTP layer:
// decoding, delegation to the verify service, and the JSON envelopes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zavodil/near-social-auth/internal/challenge"
	"github.com/zavodil/near-social-auth/internal/verify"
	derrors "github.com/zavodil/near-social-auth/pkg/domain-errors"
	"github.com/zavodil/near-social-auth/pkg/platform/httputil"
	"github.com/zavodil/near-social-auth/pkg/requestcontext"
)

// Service is the interface the handler needs from the orchestrator.
type Service interface {
	Verify(ctx context.Context, req verify.Request) verify.Response
	AccountExists(ctx context.Context, accountID string) verify.Response
	CheckInvite(ctx context.Context, code, accountID string) (int64, error)
}

// Handler exposes the verification HTTP surface.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/challenge", h.handleChallenge)
	r.Post("/verify", h.handleVerify)
	r.Post("/account-exists", h.handleAccountExists)
	r.Post("/check-invite", h.handleCheckInvite)
}

// handleChallenge returns the static message clients must sign.
func (h *Handler) handleChallenge(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, challengeResponse{Code: challenge.Message})
}

// handleVerify runs a verification round. The endpoint always answers 200
// with a {status, message} payload; only an undecodable body is an HTTP-level
// error.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp := h.service.Verify(ctx, verify.Request{
		PublicKey: req.PublicKey,
		Signature: []byte(req.Signature),
		AccountID: req.AccountID,
		Invite:    req.Invite,
	})

	h.logger.InfoContext(ctx, "verification round finished",
		"request_id", requestcontext.RequestID(ctx),
		"account_id", req.AccountID,
		"status", resp.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAccountExists(w http.ResponseWriter, r *http.Request) {
	var req accountExistsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.AccountExists(r.Context(), req.AccountID))
}

// handleCheckInvite is the pre-flight invite lookup; id 0 means no redeemable
// invite matches.
func (h *Handler) handleCheckInvite(w http.ResponseWriter, r *http.Request) {
	var req checkInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	id, err := h.service.CheckInvite(r.Context(), req.Invite, req.AccountID)
	if err != nil {
		httputil.WriteError(w, derrors.Wrap(derrors.CodeInternal, "invite lookup failed", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkInviteResponse{ID: id})
}
