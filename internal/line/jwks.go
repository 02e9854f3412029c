package line

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// KeyCache holds one parsed key set per JWKS URL for the process lifetime.
// LINE rotates signing keys slowly, so there is no refresh policy; a restart
// picks up new keys. Construct one cache at startup and share it.
type KeyCache struct {
	mu     sync.RWMutex
	client *http.Client
	sets   map[string]map[string]crypto.PublicKey
}

func NewKeyCache() *KeyCache {
	return &KeyCache{
		client: &http.Client{Timeout: 10 * time.Second},
		sets:   make(map[string]map[string]crypto.PublicKey),
	}
}

// Get returns the kid-indexed public keys served at url, fetching them on
// first use.
func (c *KeyCache) Get(ctx context.Context, url string) (map[string]crypto.PublicKey, error) {
	c.mu.RLock()
	keys, ok := c.sets[url]
	c.mu.RUnlock()
	if ok {
		return keys, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if keys, ok := c.sets[url]; ok {
		return keys, nil
	}

	keys, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = keys
	return keys, nil
}

func (c *KeyCache) fetch(ctx context.Context, url string) (map[string]crypto.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jwks fetch returned %d: %s", resp.StatusCode, string(body))
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("jwks decode failed: %w", err)
	}
	if len(set.Keys) == 0 {
		return nil, errors.New("jwks document contains no keys")
	}

	keys := make(map[string]crypto.PublicKey, len(set.Keys))
	for _, key := range set.Keys {
		parsed, err := parseJWK(key)
		if err != nil {
			return nil, fmt.Errorf("jwks key %s: %w", key.Kid, err)
		}
		keys[key.Kid] = parsed
	}
	return keys, nil
}

func parseJWK(key jwk) (crypto.PublicKey, error) {
	switch key.Kty {
	case "RSA":
		return parseRSAJWK(key)
	case "EC":
		return parseECJWK(key)
	}
	return nil, fmt.Errorf("unsupported key type %q", key.Kty)
}

func parseRSAJWK(key jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

func parseECJWK(key jwk) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch key.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", key.Crv)
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(key.X)
	if err != nil {
		return nil, fmt.Errorf("invalid x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(key.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid y coordinate: %w", err)
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
