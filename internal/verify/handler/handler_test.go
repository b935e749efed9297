package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zavodil/near-social-auth/internal/verify"
)

type stubService struct {
	lastVerify     verify.Request
	verifyResp     verify.Response
	existsResp     verify.Response
	checkInviteID  int64
	checkInviteErr error
}

func (s *stubService) Verify(_ context.Context, req verify.Request) verify.Response {
	s.lastVerify = req
	return s.verifyResp
}

func (s *stubService) AccountExists(context.Context, string) verify.Response {
	return s.existsResp
}

func (s *stubService) CheckInvite(context.Context, string, string) (int64, error) {
	return s.checkInviteID, s.checkInviteErr
}

func newTestRouter(service *stubService) http.Handler {
	r := chi.NewRouter()
	New(service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestChallenge(t *testing.T) {
	router := newTestRouter(&stubService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/challenge", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"code":"Future Is NEAR"}`, rec.Body.String())
}

func TestVerify_SignatureAsCommaString(t *testing.T) {
	service := &stubService{verifyResp: verify.Response{Status: true, Message: `{"username":"alice"}`}}
	router := newTestRouter(service)

	body := `{"publicKey":"ed25519:abc","signature":"12, 255,0","account_id":"alice.near","invite":"golden"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":true,"message":"{\"username\":\"alice\"}"}`, rec.Body.String())
	assert.Equal(t, []byte{12, 255, 0}, service.lastVerify.Signature)
	assert.Equal(t, "alice.near", service.lastVerify.AccountID)
	assert.Equal(t, "golden", service.lastVerify.Invite)
}

func TestVerify_SignatureAsNumberArray(t *testing.T) {
	service := &stubService{verifyResp: verify.Response{Status: false, Message: "key not authorized"}}
	router := newTestRouter(service)

	body := `{"publicKey":"ed25519:abc","signature":[1,2,3],"account_id":"alice.near"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []byte{1, 2, 3}, service.lastVerify.Signature)
	assert.JSONEq(t, `{"status":false,"message":"key not authorized"}`, rec.Body.String())
}

func TestVerify_RejectsMalformedBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"signature byte out of range", `{"signature":[1,300]}`},
		{"signature garbage string", `{"signature":"1,zz"}`},
		{"signature wrong type", `{"signature":{"a":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubService{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/verify", strings.NewReader(tc.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "bad_request")
		})
	}
}

func TestAccountExists(t *testing.T) {
	service := &stubService{existsResp: verify.Response{Status: true, Message: `{"approved":true}`}}
	router := newTestRouter(service)

	body := `{"account_id":"alice.near"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/account-exists", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":true,"message":"{\"approved\":true}"}`, rec.Body.String())
}

func TestCheckInvite(t *testing.T) {
	t.Run("redeemable invite", func(t *testing.T) {
		router := newTestRouter(&stubService{checkInviteID: 7})

		body := `{"invite":"golden","account_id":"alice.near"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-invite", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":7}`, rec.Body.String())
	})

	t.Run("no matching invite", func(t *testing.T) {
		router := newTestRouter(&stubService{})

		body := `{"invite":"bogus","account_id":"alice.near"}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/check-invite", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"id":0}`, rec.Body.String())
	})
}
