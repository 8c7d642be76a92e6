// Package config loads the JSON configuration file named on the command
// line, resolving any "keyvault://<secret-name>" value against Azure Key
// Vault before the rest of the program sees it.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// AuthEntry is one entry of rpc.auth: the key-set configuration consumed
// by internal/auth.
type AuthEntry struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Issuer   string            `json:"issuer"`
	Audience string            `json:"audience"`
	KeysURL  string            `json:"keys_url,omitempty"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// RPCConfig is the "rpc" section.
type RPCConfig struct {
	Address string      `json:"address"`
	Port    int         `json:"port"`
	Auth    []AuthEntry `json:"auth"`
}

// AWSConfig is the "aws" section, named after the original deployment's
// cloud provider but repurposed here for whichever provider backs the
// queue/store/keyvault in this deployment.
type AWSConfig struct {
	LogLevel string `json:"log_level"`
	Tables   struct {
		Trips     string `json:"trips"`
		Accounts  string `json:"accounts"`
		Locations string `json:"locations"`
	} `json:"tables"`
	Queues struct {
		PendingRoutes string `json:"pending_routes"`
	} `json:"queues"`
}

// GeocoderConfig is the "geocoder" section.
type GeocoderConfig struct {
	Mode       string `json:"mode"`
	AccentFold string `json:"accent_fold,omitempty"`
}

// DecomposerConfig is the "decomposer" section: the endpoint of the
// external named-entity recognizer.
type DecomposerConfig struct {
	NEREndpoint string `json:"ner_endpoint"`
}

// CacheConfig is the optional "cache" section backing the geocoder's
// short-lived result cache.
type CacheConfig struct {
	RedisAddr string `json:"redis_addr,omitempty"`
}

// TelemetryConfig is the optional "telemetry" section; an empty
// OTLPEndpoint disables trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
}

// RoutingConfig is the "routing" section.
type RoutingConfig struct {
	Algorithm         string `json:"algorithm"`
	MaxWaypoints      int    `json:"max_waypoints"`
	AsyncThreshold    int    `json:"async_threshold"`
	WorkerConcurrency int    `json:"worker_concurrency"`
}

// RegionConfig is one entry of the "regions" section; its addressbook and
// osrm maps hold path entries keyed by mode/algorithm.
type RegionConfig struct {
	Name        string            `json:"name"`
	Enabled     *bool             `json:"enabled,omitempty"`
	AddressBook map[string]string `json:"addressbook"`
	Poly        string            `json:"poly"`
	OSRM        map[string]string `json:"osrm"`
}

// IsEnabled reports whether a region is active; defaults to true.
func (r RegionConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Config is the top-level JSON configuration document.
type Config struct {
	RPC        RPCConfig        `json:"rpc"`
	AWS        AWSConfig        `json:"aws"`
	Geocoder   GeocoderConfig   `json:"geocoder"`
	Decomposer DecomposerConfig `json:"decomposer"`
	Cache      CacheConfig      `json:"cache,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
	Routing    RoutingConfig    `json:"routing"`
	Regions    []RegionConfig   `json:"regions"`

	KeyVaultName string `json:"keyvault_name,omitempty"`
}

// Load reads and parses the JSON config file at path, resolving any
// "keyvault://<secret-name>" string values in-place.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.KeyVaultName != "" {
		if err := resolveSecrets(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("config: resolve keyvault:// values: %w", err)
		}
	}
	return &cfg, nil
}

const keyVaultPrefix = "keyvault://"

// resolveSecrets walks the fields known to carry secrets (the key-set
// entries' inline keys, and the storage/queue connection strings passed
// through AWSConfig) and replaces any "keyvault://<name>" value with the
// secret fetched from Key Vault.
func resolveSecrets(ctx context.Context, cfg *Config) error {
	client, err := newKeyVaultClient(cfg.KeyVaultName)
	if err != nil {
		return err
	}

	for i := range cfg.RPC.Auth {
		entry := &cfg.RPC.Auth[i]
		for kid, v := range entry.Keys {
			resolved, err := resolveValue(ctx, client, v)
			if err != nil {
				return err
			}
			entry.Keys[kid] = resolved
		}
	}

	for _, field := range []*string{
		&cfg.AWS.Tables.Trips, &cfg.AWS.Tables.Accounts, &cfg.AWS.Tables.Locations,
		&cfg.AWS.Queues.PendingRoutes,
	} {
		resolved, err := resolveValue(ctx, client, *field)
		if err != nil {
			return err
		}
		*field = resolved
	}
	return nil
}

func resolveValue(ctx context.Context, client *azsecrets.Client, v string) (string, error) {
	if !strings.HasPrefix(v, keyVaultPrefix) {
		return v, nil
	}
	name := strings.TrimPrefix(v, keyVaultPrefix)
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("fetch secret %q: %w", name, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %q has no value", name)
	}
	return *resp.Value, nil
}

func newKeyVaultClient(vaultName string) (*azsecrets.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default credential: %w", err)
	}
	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", vaultName)
	return azsecrets.NewClient(vaultURL, cred, nil)
}
