// Package secrets loads the exchange API credentials from HashiCorp Vault,
// falling back to config/environment values when Vault is disabled. There is
// one credential pair for the whole deployment: this is a single-operator
// engine, not the teacher's per-user vault tenancy.
package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"vegasstrategy/config"
)

// ExchangeKeys is the credential pair the binance.FuturesClient is built from.
type ExchangeKeys struct {
	APIKey    string `json:"api_key"`
	SecretKey string `json:"secret_key"`
}

// Client wraps the HashiCorp Vault client for the engine's exchange keys,
// caching the last successful read so a transient Vault outage doesn't stall
// a process that's already started.
type Client struct {
	client  *api.Client
	cfg     config.VaultConfig
	mu      sync.RWMutex
	cached  *ExchangeKeys
}

// NewClient builds a Client. When cfg.Enabled is false, Client operates
// entirely out of the cache that LoadFallback seeds.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{cfg: cfg}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, cfg: cfg}, nil
}

// LoadFallback seeds the cache with credentials from config/environment, the
// value ReadExchangeKeys returns when Vault is disabled or unreachable.
func (c *Client) LoadFallback(keys ExchangeKeys) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = &keys
}

// ReadExchangeKeys returns the exchange credentials, reading from Vault when
// enabled and falling back to the cached (env-sourced) value on any error.
func (c *Client) ReadExchangeKeys(ctx context.Context) (ExchangeKeys, error) {
	if !c.cfg.Enabled {
		return c.fallbackOrError()
	}

	path := fmt.Sprintf("%s/data/%s", c.cfg.MountPath, c.cfg.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil || secret == nil || secret.Data == nil {
		return c.fallbackOrError()
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return c.fallbackOrError()
	}

	keys := ExchangeKeys{
		APIKey:    getString(data, "api_key"),
		SecretKey: getString(data, "secret_key"),
	}

	c.mu.Lock()
	c.cached = &keys
	c.mu.Unlock()

	return keys, nil
}

func (c *Client) fallbackOrError() (ExchangeKeys, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == nil {
		return ExchangeKeys{}, fmt.Errorf("no exchange keys available: vault disabled/unreachable and no fallback loaded")
	}
	return *c.cached, nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
