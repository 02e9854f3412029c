package line

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kerokerotur/banars-app/internal/apperr"
)

// DefaultIssuer is the issuer of LINE Login id tokens.
const DefaultIssuer = "https://access.line.me"

// CodeTokenInvalid covers every verification failure; the underlying reason
// travels as diagnostic detail only.
const CodeTokenInvalid = "line_token_invalid"

// Claims is the verified payload of a LINE id token. Never built from
// unvalidated client input.
type Claims struct {
	Sub   string
	Email string
	Name  string
}

type idTokenClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Config struct {
	JWKSURL   string
	ChannelID string // expected audience
	Issuer    string // defaults to DefaultIssuer
}

// Verifier checks LINE id tokens against the channel's JWKS document. The key
// cache is injected so tests can use a fresh one per case.
type Verifier struct {
	cfg   Config
	cache *KeyCache
}

func NewVerifier(cfg Config, cache *KeyCache) *Verifier {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	return &Verifier{cfg: cfg, cache: cache}
}

// Verify validates signature, audience, issuer and expiry, and requires a
// subject claim. An empty token is rejected before any key fetch.
func (v *Verifier) Verify(ctx context.Context, idToken string) (Claims, error) {
	if strings.TrimSpace(idToken) == "" {
		return Claims{}, apperr.New(CodeTokenInvalid, "LINE id token is empty", 400)
	}

	keys, err := v.cache.Get(ctx, v.cfg.JWKSURL)
	if err != nil {
		return Claims{}, apperr.Wrap(CodeTokenInvalid, "LINE id token verification failed", 401, err)
	}

	token, err := jwt.ParseWithClaims(idToken, &idTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid in token header")
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("no matching key for kid %s", kid)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithAudience(v.cfg.ChannelID),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, apperr.Wrap(CodeTokenInvalid, "LINE id token verification failed", 401, err)
	}

	claims, ok := token.Claims.(*idTokenClaims)
	if !ok || !token.Valid {
		return Claims{}, apperr.New(CodeTokenInvalid, "LINE id token verification failed", 401)
	}
	// A well-signed token without a subject is still unusable.
	if claims.Subject == "" {
		return Claims{}, apperr.New(CodeTokenInvalid, "LINE id token has no sub claim", 400)
	}

	return Claims{
		Sub:   claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
