package nearclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zavodil/near-social-auth/internal/platform/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.NEAR{
		NetworkID:   "testnet",
		NodeURL:     srv.URL,
		ContractID:  "social.near",
		CallTimeout: 5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func rpcResult(t *testing.T, w http.ResponseWriter, result any) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      "dontcare",
		"result":  result,
	}))
}

func TestListAccessKeys(t *testing.T) {
	t.Run("decodes both permission shapes", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			var req rpcRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "query", req.Method)
			rpcResult(t, w, map[string]any{
				"keys": []map[string]any{
					{
						"public_key": "ed25519:full",
						"access_key": map[string]any{"nonce": 1, "permission": "FullAccess"},
					},
					{
						"public_key": "ed25519:scoped",
						"access_key": map[string]any{
							"nonce": 7,
							"permission": map[string]any{
								"FunctionCall": map[string]any{
									"allowance":    "250000000000000000000000",
									"receiver_id":  "social.near",
									"method_names": []string{},
								},
							},
						},
					},
				},
			})
		})

		keys, err := client.ListAccessKeys(context.Background(), "alice.near")
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.True(t, keys[0].AccessKey.Permission.FullAccess)
		assert.Nil(t, keys[0].AccessKey.Permission.FunctionCall)
		require.NotNil(t, keys[1].AccessKey.Permission.FunctionCall)
		assert.Equal(t, "social.near", keys[1].AccessKey.Permission.FunctionCall.ReceiverID)
	})

	t.Run("unknown account via rpc error cause", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      "dontcare",
				"error": map[string]any{
					"name":    "HANDLER_ERROR",
					"cause":   map[string]any{"name": "UNKNOWN_ACCOUNT"},
					"message": "account ghost.near does not exist",
				},
			})
		})

		_, err := client.ListAccessKeys(context.Background(), "ghost.near")
		assert.ErrorIs(t, err, ErrUnknownAccount)
	})

	t.Run("unknown account via legacy result error", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			rpcResult(t, w, map[string]any{
				"error": "account ghost.near does not exist while viewing",
			})
		})

		_, err := client.ListAccessKeys(context.Background(), "ghost.near")
		assert.ErrorIs(t, err, ErrUnknownAccount)
	})

	t.Run("retries transport failure once", func(t *testing.T) {
		var calls int
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			rpcResult(t, w, map[string]any{"keys": []map[string]any{}})
		})

		keys, err := client.ListAccessKeys(context.Background(), "alice.near")
		require.NoError(t, err)
		assert.Empty(t, keys)
		assert.Equal(t, 2, calls)
	})
}

type staticLister struct{ keys []AccessKey }

func (s staticLister) ListAccessKeys(context.Context, string) ([]AccessKey, error) {
	return s.keys, nil
}

func functionCallKey(publicKey, receiver string) AccessKey {
	return AccessKey{
		PublicKey: publicKey,
		AccessKey: AccessKeyInfo{
			Permission: Permission{FunctionCall: &FunctionCallPermission{ReceiverID: receiver}},
		},
	}
}

func TestKeyChecker(t *testing.T) {
	const pub = "ed25519:GkKv3BPVabh571PDRRY4zGF2y6WqM8JGkVmwUc5UfDSq"

	t.Run("function call key scoped to contract authorizes", func(t *testing.T) {
		checker := NewKeyChecker(staticLister{keys: []AccessKey{functionCallKey(pub, "social.near")}}, "social.near")
		ok, err := checker.IsAuthorized(context.Background(), "alice.near", pub)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("full access key does not authorize", func(t *testing.T) {
		checker := NewKeyChecker(staticLister{keys: []AccessKey{{
			PublicKey: pub,
			AccessKey: AccessKeyInfo{Permission: Permission{FullAccess: true}},
		}}}, "social.near")
		ok, err := checker.IsAuthorized(context.Background(), "alice.near", pub)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("key scoped to another contract does not authorize", func(t *testing.T) {
		checker := NewKeyChecker(staticLister{keys: []AccessKey{functionCallKey(pub, "other.near")}}, "social.near")
		ok, err := checker.IsAuthorized(context.Background(), "alice.near", pub)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("key absent from the list does not authorize", func(t *testing.T) {
		checker := NewKeyChecker(staticLister{keys: []AccessKey{functionCallKey("ed25519:other", "social.near")}}, "social.near")
		ok, err := checker.IsAuthorized(context.Background(), "alice.near", pub)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
