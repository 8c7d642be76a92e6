// Package auth implements the refreshable bearer-token key set and the
// front end's authorization check.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names accepted in a key-set entry's "type" field.
const (
	AlgRS256 = "jwt+rs256"
	AlgHS256 = "jwt+hs256"
)

// RefreshInterval is how often the background task refreshes the union of
// all entries' keys.
const RefreshInterval = 3600 * time.Second

// EntryConfig describes one key-set entry as loaded from JSON config.
type EntryConfig struct {
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Issuer   string            `json:"issuer"`
	Audience string            `json:"audience"`
	KeysURL  string            `json:"keys_url,omitempty"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// validator carries one entry's algorithm, expected claims, and current keys.
type validator struct {
	name     string
	alg      string
	issuer   string
	audience string
	keysURL  string

	hmacSecret []byte
	rsaKeys    map[string]*rsa.PublicKey
}

// Identity is the request context derived from a verified bearer token.
type Identity struct {
	UID string
	IDP string
}

// KeySet holds the refreshable union of all configured validators behind a
// reader-writer discipline: Authorize takes the read path; refresh swaps a
// whole new snapshot rather than mutating entries in place, so readers never
// observe a half-refreshed set.
type KeySet struct {
	configs []EntryConfig
	client  *http.Client

	snapshot atomic.Pointer[[]*validator]

	stopOnce sync.Once
	stop     chan struct{}
}

// NewKeySet builds a key set from the configured entries and performs a
// synchronous initial load so the first Authorize call never races the
// background refresher.
func NewKeySet(ctx context.Context, configs []EntryConfig) (*KeySet, error) {
	ks := &KeySet{
		configs: configs,
		client:  &http.Client{Timeout: 10 * time.Second},
		stop:    make(chan struct{}),
	}
	if err := ks.refresh(ctx); err != nil {
		return nil, fmt.Errorf("auth: initial key set load: %w", err)
	}
	return ks, nil
}

// Run starts the background refresh loop; it blocks until ctx is done or
// Close is called.
func (ks *KeySet) Run(ctx context.Context, logError func(error)) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ks.stop:
			return
		case <-ticker.C:
			if err := ks.refresh(ctx); err != nil && logError != nil {
				logError(err)
			}
		}
	}
}

// Close stops the background refresh loop.
func (ks *KeySet) Close() {
	ks.stopOnce.Do(func() { close(ks.stop) })
}

func (ks *KeySet) refresh(ctx context.Context) error {
	next := make([]*validator, 0, len(ks.configs))
	for _, cfg := range ks.configs {
		v, err := ks.buildValidator(ctx, cfg)
		if err != nil {
			return fmt.Errorf("auth: entry %q: %w", cfg.Name, err)
		}
		next = append(next, v)
	}
	ks.snapshot.Store(&next)
	return nil
}

func (ks *KeySet) buildValidator(ctx context.Context, cfg EntryConfig) (*validator, error) {
	v := &validator{name: cfg.Name, alg: cfg.Type, issuer: cfg.Issuer, audience: cfg.Audience, keysURL: cfg.KeysURL}

	keys := cfg.Keys
	if cfg.KeysURL != "" {
		fetched, err := ks.fetchKeys(ctx, cfg.KeysURL)
		if err != nil {
			return nil, err
		}
		keys = fetched
	}

	switch cfg.Type {
	case AlgHS256:
		kid, secret, err := singleKey(keys)
		if err != nil {
			return nil, err
		}
		_ = kid
		v.hmacSecret = []byte(secret)
	case AlgRS256:
		v.rsaKeys = make(map[string]*rsa.PublicKey, len(keys))
		for kid, pem := range keys {
			key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
			if err != nil {
				return nil, fmt.Errorf("kid %q: %w", kid, err)
			}
			v.rsaKeys[kid] = key
		}
	default:
		return nil, fmt.Errorf("unknown key-set entry type %q", cfg.Type)
	}
	return v, nil
}

func singleKey(keys map[string]string) (kid, secret string, err error) {
	for k, v := range keys {
		return k, v, nil
	}
	return "", "", fmt.Errorf("no keys configured")
}

func (ks *KeySet) fetchKeys(ctx context.Context, url string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keys fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]string
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("keys fetch %s: %w", url, err)
	}
	return out, nil
}

// Authorize decodes and verifies a raw "Bearer <token>" header value,
// returning the derived identity. Any failure — missing header, bad prefix,
// unknown kid, bad signature, claim mismatch — is reported by returning
// ok=false; callers surface not_authorized.
func (ks *KeySet) Authorize(header string) (Identity, bool) {
	if header == "" {
		return Identity{}, false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Identity{}, false
	}
	return ks.verify(parts[1])
}

func (ks *KeySet) verify(tokenString string) (Identity, bool) {
	snapshot := ks.snapshot.Load()
	if snapshot == nil {
		return Identity{}, false
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return Identity{}, false
	}
	kid, _ := unverified.Header["kid"].(string)

	for _, v := range *snapshot {
		claims, ok := v.tryVerify(tokenString, kid)
		if !ok {
			continue
		}
		phone, _ := claims["phone_number"].(string)
		if phone == "" {
			continue
		}
		return Identity{UID: phone, IDP: v.name}, true
	}
	return Identity{}, false
}

func (v *validator) tryVerify(tokenString, kid string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		switch v.alg {
		case AlgHS256:
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return v.hmacSecret, nil
		case AlgRS256:
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			key, ok := v.rsaKeys[kid]
			if !ok {
				return nil, fmt.Errorf("unknown kid %q", kid)
			}
			return key, nil
		default:
			return nil, fmt.Errorf("unsupported algorithm")
		}
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}
