// Package config assembles process configuration from the environment so main
// stays lean. Components receive their slice of it at construction time; no
// package reads ambient environment state after startup.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	NEAR     NEAR
	Social   Social
	Postgres Postgres
	Redis    Redis
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string
	MetricsAddr string
}

// NEAR selects the chain environment and the contract scope used for
// access-key authorization checks.
type NEAR struct {
	NetworkID  string
	NodeURL    string
	ContractID string
	// AccountSuffix is the required top-level naming domain for account ids,
	// ".near" on mainnet.
	AccountSuffix string
	CallTimeout   time.Duration
}

// Social configures the near.social backend client.
type Social struct {
	BaseURL     string
	Token       string
	Locale      string
	CallTimeout time.Duration
}

// Postgres configures the invite and audit stores.
type Postgres struct {
	URL string
	// InitSchema runs the invites DDL at startup. Schema creation is an
	// operator action, not part of the request path.
	InitSchema bool
}

// Redis configures the optional access-key cache. Empty URL disables it.
type Redis struct {
	URL          string
	AccessKeyTTL time.Duration
}

// rpcEndpoints mirrors the per-network node URLs the wallet frontend uses.
var rpcEndpoints = map[string]string{
	"mainnet": "https://rpc.mainnet.near.org",
	"testnet": "https://rpc.testnet.near.org",
}

// FromEnv builds the configuration from environment variables. Unknown network
// names and a missing social token are startup errors, not request-time ones.
func FromEnv() (Config, error) {
	network := getenv("NEAR_NETWORK", "mainnet")
	nodeURL := os.Getenv("NEAR_NODE_URL")
	if nodeURL == "" {
		var ok bool
		nodeURL, ok = rpcEndpoints[network]
		if !ok {
			return Config{}, fmt.Errorf("unconfigured network %q; set NEAR_NODE_URL or use mainnet/testnet", network)
		}
	}

	token := os.Getenv("NEAR_SOCIAL_APP_TOKEN")
	if token == "" {
		return Config{}, fmt.Errorf("NEAR_SOCIAL_APP_TOKEN is required")
	}

	pgURL := os.Getenv("DATABASE_URL")
	if pgURL == "" {
		pgURL = postgresURLFromParts()
	}
	if pgURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL or POSTGRES_* variables are required")
	}

	return Config{
		Server: Server{
			Addr:        getenv("NEAR_AUTH_ADDR", ":4001"),
			MetricsAddr: getenv("METRICS_ADDR", ":9091"),
		},
		NEAR: NEAR{
			NetworkID:     network,
			NodeURL:       nodeURL,
			ContractID:    getenv("NEAR_SOCIAL_CONTRACT_ID", "social.near"),
			AccountSuffix: getenv("NEAR_ACCOUNT_SUFFIX", ".near"),
			CallTimeout:   duration("NEAR_CALL_TIMEOUT", 10*time.Second),
		},
		Social: Social{
			BaseURL:     getenv("NEAR_SOCIAL_SERVER", "https://near.social/api/v1/"),
			Token:       token,
			Locale:      getenv("NEAR_SOCIAL_LOCALE", "en"),
			CallTimeout: duration("SOCIAL_CALL_TIMEOUT", 10*time.Second),
		},
		Postgres: Postgres{
			URL:        pgURL,
			InitSchema: os.Getenv("DB_INIT") == "true",
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			AccessKeyTTL: duration("ACCESS_KEY_CACHE_TTL", 30*time.Second),
		},
	}, nil
}

// postgresURLFromParts assembles a connection URL from the discrete POSTGRES_*
// variables the deployment manifests set.
func postgresURLFromParts() string {
	host := os.Getenv("POSTGRES_SERVICE_HOST")
	db := os.Getenv("POSTGRES_DB")
	if host == "" || db == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + getenv("POSTGRES_SERVICE_PORT", "5432"),
		Path:   "/" + db,
	}
	q := u.Query()
	q.Set("sslmode", getenv("POSTGRES_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
