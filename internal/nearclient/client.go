// Package nearclient talks to the NEAR JSON-RPC endpoint to list an account's
// access keys and decide whether a claimed signing key is authorized for the
// application contract.
package nearclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zavodil/near-social-auth/internal/platform/config"
)

var rpcDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "near_auth_rpc_duration_seconds",
	Help:    "Latency of NEAR JSON-RPC access key queries",
	Buckets: prometheus.DefBuckets,
})

// ErrUnknownAccount reports that the account does not exist on-chain. It is
// deliberately distinct from "key not authorized".
var ErrUnknownAccount = errors.New("nearclient: unknown account")

// AccessKeyLister lists an account's on-chain access keys. The raw client and
// the Redis cache both satisfy it.
type AccessKeyLister interface {
	ListAccessKeys(ctx context.Context, accountID string) ([]AccessKey, error)
}

// Client issues view_access_key_list queries against one RPC node.
type Client struct {
	nodeURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	callTimeout time.Duration
}

// New constructs a client for the configured network.
func New(cfg config.NEAR, logger *slog.Logger) *Client {
	return &Client{
		nodeURL:     cfg.NodeURL,
		httpClient:  &http.Client{Timeout: cfg.CallTimeout},
		logger:      logger,
		callTimeout: cfg.CallTimeout,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Name  string `json:"name"`
	Cause struct {
		Name string `json:"name"`
	} `json:"cause"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type accessKeyListResult struct {
	Keys []AccessKey `json:"keys"`
	// Older nodes surface query failures inside the result body.
	Err string `json:"error"`
}

// ListAccessKeys fetches the account's access keys. A transport failure is
// retried once (the query is a pure read); an RPC-level UNKNOWN_ACCOUNT maps
// to ErrUnknownAccount.
func (c *Client) ListAccessKeys(ctx context.Context, accountID string) ([]AccessKey, error) {
	start := time.Now()
	defer func() { rpcDuration.Observe(time.Since(start).Seconds()) }()

	keys, err := c.listOnce(ctx, accountID)
	if err != nil && isTransport(err) {
		c.logger.WarnContext(ctx, "near rpc transport failure, retrying once",
			"account_id", accountID, "error", err)
		keys, err = c.listOnce(ctx, accountID)
	}
	return keys, err
}

func (c *Client) listOnce(ctx context.Context, accountID string) ([]AccessKey, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      "dontcare",
		Method:  "query",
		Params: map[string]any{
			"request_type": "view_access_key_list",
			"finality":     "final",
			"account_id":   accountID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.nodeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError{fmt.Errorf("near rpc: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, transportError{fmt.Errorf("read rpc response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, transportError{fmt.Errorf("near rpc status %d", resp.StatusCode)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Cause.Name == "UNKNOWN_ACCOUNT" {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
		}
		return nil, fmt.Errorf("near rpc error %s: %s", rpcResp.Error.Name, rpcResp.Error.Message)
	}

	var result accessKeyListResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode access key list: %w", err)
	}
	if result.Err != "" {
		if strings.Contains(result.Err, "does not exist") {
			return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
		}
		return nil, fmt.Errorf("near query error: %s", result.Err)
	}
	return result.Keys, nil
}

type transportError struct{ err error }

func (t transportError) Error() string { return t.err.Error() }
func (t transportError) Unwrap() error { return t.err }

func isTransport(err error) bool {
	var te transportError
	return errors.As(err, &te)
}
