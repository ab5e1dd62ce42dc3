// Package jwks verifies EdDSA bearer tokens against a JSON Web Key Set.
package jwks

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"` // Key type
	Kid string `json:"kid"` // Key ID
	Use string `json:"use"` // Public key use
	Alg string `json:"alg"` // Algorithm
	Crv string `json:"crv"` // Curve
	X   string `json:"x"`   // Public key
}

// ErrKeyNotFound is returned when no key matches a token's kid.
var ErrKeyNotFound = errors.New("signing key not found")

// KeySource resolves a key id to an Ed25519 public key.
type KeySource interface {
	Key(ctx context.Context, kid string) (ed25519.PublicKey, error)
}

// Client fetches and caches a remote JWKS.
type Client struct {
	jwksURL    string
	httpClient *http.Client
	ttl        time.Duration

	mu        sync.RWMutex
	keys      map[string]ed25519.PublicKey
	expiresAt time.Time
}

// NewClient creates a new JWKS client. Keys are cached for five minutes.
func NewClient(jwksURL string) *Client {
	return &Client{
		jwksURL:    jwksURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        5 * time.Minute,
	}
}

// fetch downloads the key set and keeps the Ed25519 signing keys.
func (c *Client) fetch(ctx context.Context) (map[string]ed25519.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var set JWKS
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]ed25519.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "OKP" || k.Crv != "Ed25519" || (k.Alg != "" && k.Alg != "EdDSA") {
			continue
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil || len(x) != ed25519.PublicKeySize {
			continue
		}
		keys[k.Kid] = ed25519.PublicKey(x)
	}
	return keys, nil
}

// Key returns the key for kid, refreshing the cache when it has expired or the
// kid is unknown.
func (c *Client) Key(ctx context.Context, kid string) (ed25519.PublicKey, error) {
	c.mu.RLock()
	if c.keys != nil && time.Now().Before(c.expiresAt) {
		if k, ok := c.keys[kid]; ok {
			c.mu.RUnlock()
			return k, nil
		}
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.keys = keys
	c.expiresAt = time.Now().Add(c.ttl)

	if k, ok := keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

// StaticKeys is a fixed in-process key set.
type StaticKeys map[string]ed25519.PublicKey

func (s StaticKeys) Key(ctx context.Context, kid string) (ed25519.PublicKey, error) {
	if k, ok := s[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

// Verifier checks signature, issuer, audience and expiry of bearer tokens.
type Verifier struct {
	keys     KeySource
	issuer   string
	audience string
}

// NewVerifier returns a Verifier accepting tokens from issuer for audience.
func NewVerifier(keys KeySource, issuer, audience string) *Verifier {
	return &Verifier{keys: keys, issuer: issuer, audience: audience}
}

// Verify validates tokenString and returns its subject.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (string, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("missing or invalid kid in JWT header")
		}
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		return key, nil
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to verify JWT: %w", err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("JWT has no subject")
	}
	return claims.Subject, nil
}
