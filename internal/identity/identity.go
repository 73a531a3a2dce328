// Package identity implements the identity.verify(token) external
// collaborator: Bearer-token verification against a JWKS-published RS256
// key set, with a process-wide, lazily-filled, immutable-after-fill cache
// so at most one JWKS fetch is ever in flight at a time.
package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrUnauthorized signals a missing, malformed, or unverifiable token —
// always mapped to HTTP 401 by the transport layer, never to a pipeline
// fallback.
var ErrUnauthorized = errors.New("unauthorized")

// Claims is the subset of a verified token's claims the pipeline cares
// about; UserProfile is handed to Commander's weight-adjustment rules.
type Claims struct {
	Subject     string
	UserProfile map[string]any
}

// Verifier validates Bearer tokens against a configured identity provider.
type Verifier struct {
	Domain   string
	Audience string

	keys     *xsync.MapOf[string, *rsa.PublicKey]
	fillOnce sync.Once
	fillErr  error
	client   *http.Client
}

// NewVerifier builds a Verifier for domain (JWKS served at
// https://{domain}/.well-known/jwks.json) and the expected audience.
func NewVerifier(domain, audience string) *Verifier {
	return &Verifier{
		Domain:   domain,
		Audience: audience,
		keys:     xsync.NewMapOf[string, *rsa.PublicKey](),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Verify checks a raw Bearer token string (without the "Bearer " prefix)
// and returns its claims, or ErrUnauthorized wrapping the cause. An absent
// token is not an error: it returns empty claims so the pipeline can run
// anonymously; only a present-but-invalid token is unauthorized.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	if rawToken == "" {
		return Claims{}, nil
	}

	if err := v.ensureKeysLoaded(ctx); err != nil {
		return Claims{}, fmt.Errorf("%w: jwks unavailable: %v", ErrUnauthorized, err)
	}

	token, err := jwt.Parse(rawToken, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.Audience),
		jwt.WithIssuer("https://"+v.Domain+"/"),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Claims{}, ErrUnauthorized
	}

	subject, _ := claims["sub"].(string)
	profile := map[string]any{}
	if raw, ok := claims["user_profile"].(map[string]interface{}); ok {
		profile = raw
	}

	return Claims{Subject: subject, UserProfile: profile}, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token missing kid header")
	}
	key, ok := v.keys.Load(kid)
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

// ensureKeysLoaded fetches and parses the JWKS exactly once per process
// (sync.Once); subsequent calls reuse the cached, immutable key set even if
// the first fetch failed (callers see the recorded fillErr).
func (v *Verifier) ensureKeysLoaded(ctx context.Context) error {
	v.fillOnce.Do(func() {
		v.fillErr = v.fetchJWKS(ctx)
	})
	return v.fillErr
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

func (v *Verifier) fetchJWKS(ctx context.Context) error {
	url := fmt.Sprintf("https://%s/.well-known/jwks.json", v.Domain)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("jwks fetch returned status %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaPublicKeyFromJWK(k)
		if err != nil {
			continue
		}
		v.keys.Store(k.Kid, pub)
	}

	return nil
}

func rsaPublicKeyFromJWK(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode e: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
