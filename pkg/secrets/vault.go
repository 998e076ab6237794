package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultKeys are the secrets the portal reads from Vault when VAULT_KEYS is unset.
var DefaultKeys = []string{
	"LEDGER_PRIVATE_KEY",
	"OPENAI_API_KEY",
	"WHATSAPP_ACCESS_TOKEN",
	"DB_PASSWORD",
	"REDIS_PASSWORD",
	"GCS_CREDENTIALS_JSON",
}

// VaultConfig describes where to fetch secrets from a KV engine
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
	Keys      []string
}

// VaultResult summarises what ApplyVaultSecrets exported
type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  int
	Skipped int
	Ignored int
}

// LoadVaultConfigFromEnv reads VAULT_* variables
func LoadVaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
		Keys:      DefaultKeys,
	}
	if mount := os.Getenv("VAULT_MOUNT"); mount != "" {
		cfg.Mount = mount
	}
	if val := os.Getenv("VAULT_KV_VERSION"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.KVVersion = parsed
		}
	}
	if val := os.Getenv("VAULT_TIMEOUT_MS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Timeout = time.Duration(parsed) * time.Millisecond
		}
	}
	if val := os.Getenv("VAULT_KEYS"); val != "" {
		var keys []string
		for _, k := range strings.Split(val, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		cfg.Keys = keys
	}
	return cfg
}

// ApplyVaultSecrets fetches the configured path and exports the allowed keys
// into the process environment so config.Load picks them up.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	result := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}

	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return result, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	data, err := fetch(ctx, cfg)
	if err != nil {
		return result, err
	}

	allowed := make(map[string]struct{}, len(cfg.Keys))
	for _, k := range cfg.Keys {
		allowed[k] = struct{}{}
	}

	for key, value := range data {
		if len(allowed) > 0 {
			if _, ok := allowed[key]; !ok {
				result.Ignored++
				continue
			}
		}
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped++
			continue
		}
		if err := os.Setenv(key, stringifyVaultValue(value)); err != nil {
			return result, err
		}
		result.Loaded++
	}

	return result, nil
}

func fetch(ctx context.Context, cfg VaultConfig) (map[string]interface{}, error) {
	url, err := buildVaultURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Timeout}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault fetch failed: %s", resp.Status)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	return extractVaultData(payload, cfg.KVVersion)
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

func extractVaultData(payload map[string]interface{}, kvVersion int) (map[string]interface{}, error) {
	data, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("vault response missing data for KV v%d", kvVersion)
	}
	if kvVersion == 1 {
		return data, nil
	}
	inner, ok := data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("vault response missing data for KV v2")
	}
	return inner, nil
}

func stringifyVaultValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
