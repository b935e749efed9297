// Package social is the client for the near.social backend's REST API: account
// lookup, creation, the two-step approval protocol, and password rotation.
// This service never stores credentials itself; it only relays derived ones.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zavodil/near-social-auth/internal/platform/config"
)

var callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "near_auth_social_call_duration_seconds",
	Help:    "Latency of near.social API calls",
	Buckets: prometheus.DefBuckets,
}, []string{"operation"})

// Account is the remote shadow account as the social backend reports it. The
// backend owns this state; this service only reads and mutates it through the
// operations below.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Approved bool   `json:"approved"`
}

// RemoteError is a failure the backend reported in its response body (for
// example a duplicate username). It is terminal for the current step and its
// message is safe to relay to the caller. Transport failures are returned as
// plain wrapped errors instead and are never shown to callers.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// Client calls the social backend with a static bearer credential.
type Client struct {
	baseURL    string
	token      string
	locale     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New constructs the client. The base URL is normalized to end with "/" so
// endpoint paths concatenate cleanly.
func New(cfg config.Social, logger *slog.Logger) *Client {
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		locale:     cfg.Locale,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetAccount looks an account up by exact username. A nil account means the
// username is unknown to the backend. Safe to retry; it is a pure read.
func (c *Client) GetAccount(ctx context.Context, username string) (*Account, error) {
	defer observe("get_account", time.Now())

	endpoint := "admin/accounts?username=" + url.QueryEscape(username)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var accounts []Account
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("decode account list: %w", err)
	}
	// The admin search matches prefixes; require the exact username.
	for i := range accounts {
		if accounts[i].Username == username {
			return &accounts[i], nil
		}
	}
	return nil, nil
}

// CreateAccount registers a new account with the derived password. The
// backend's error payloads (duplicate username, policy rejections) surface as
// *RemoteError.
func (c *Client) CreateAccount(ctx context.Context, username, password string) error {
	defer observe("create_account", time.Now())

	form := url.Values{}
	form.Set("username", username)
	form.Set("email", username+"@near.social")
	form.Set("password", password)
	form.Set("agreement", "true")
	form.Set("locale", c.locale)

	_, err := c.do(ctx, http.MethodPost, "accounts", form)
	return err
}

// ApproveAccount runs the backend's two-step approval protocol: the admin
// approve call, then the confirmation call. The confirmation only happens when
// the approval succeeded.
func (c *Client) ApproveAccount(ctx context.Context, accountID string) error {
	defer observe("approve_account", time.Now())

	if _, err := c.do(ctx, http.MethodPost, "admin/accounts/"+accountID+"/approve", url.Values{}); err != nil {
		return err
	}
	if _, err := c.do(ctx, http.MethodPost, "accounts/"+accountID+"/confirm_account", url.Values{}); err != nil {
		return err
	}
	return nil
}

// SetPassword rotates the account's password to the freshly derived value.
func (c *Client) SetPassword(ctx context.Context, accountID, password string) error {
	defer observe("set_password", time.Now())

	form := url.Values{}
	form.Set("password", password)
	_, err := c.do(ctx, http.MethodPost, "accounts/"+accountID+"/set_password", form)
	return err
}

// do performs one API call and inspects the JSON body for the backend's
// "error" key, which is how it reports failures in the common case.
func (c *Client) do(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build social request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read social response: %w", err)
	}

	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		c.logger.WarnContext(ctx, "social api error payload",
			"operation", method+" "+endpoint, "error", envelope.Error)
		return nil, &RemoteError{Message: envelope.Error}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("social %s %s: status %d", method, endpoint, resp.StatusCode)
	}
	return body, nil
}

func observe(operation string, start time.Time) {
	callDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
