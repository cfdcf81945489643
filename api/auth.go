package api

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envLocalAuthMode    = "LOCAL_AUTH_MODE"
	envLocalAuthSecret  = "LOCAL_AUTH_SHARED_SECRET"
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"
)

// Auth validates incoming JWT access tokens issued by the identity provider,
// or HS256 tokens signed with a shared secret in local mode.
type Auth struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	LocalMode  bool
	Secret     []byte
	ClockSkew  time.Duration
	EmailClaim string

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth builds an Auth from the JWKS and the LOCAL_AUTH_* environment.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) (*Auth, error) {
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer, ClockSkew: time.Minute, EmailClaim: "email"}

	ttl, err := parseCacheTTL(os.Getenv(envJWKSCacheTTL))
	if err != nil {
		return nil, err
	}
	a.keyCacheTTL = ttl

	switch mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode {
	case "":
	case "hs256":
		secret := os.Getenv(envLocalAuthSecret)
		if secret == "" {
			return nil, errors.New("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		a.LocalMode = true
		a.Secret = []byte(secret)
	default:
		return nil, fmt.Errorf("unsupported LOCAL_AUTH_MODE value %q", mode)
	}
	if !a.LocalMode && jwks == nil {
		return nil, errors.New("jwks is required outside local auth mode")
	}
	a.init()
	return a, nil
}

// NewLocalAuth builds an HS256 verifier for development and tests.
func NewLocalAuth(secret []byte, audience, issuer string) *Auth {
	a := &Auth{Audience: audience, Issuer: issuer, LocalMode: true, Secret: secret, ClockSkew: time.Minute, EmailClaim: "email"}
	a.init()
	return a
}

func (a *Auth) init() {
	if a.LocalMode {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	} else {
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	}
}

func parseCacheTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return defaultJWKSCacheTTL, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid JWKS_CACHE_TTL %q", raw)
	}
	return parsed, nil
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	id, err := a.IdentityFromAuthHeader(h)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

// IdentityFromAuthHeader verifies the bearer token and returns its subject
// together with the optional email and name claims.
func (a *Auth) IdentityFromAuthHeader(h string) (Identity, error) {
	if h == "" {
		return Identity{}, errMissingAuthorization
	}
	token, err := bearerTokenFromString(h)
	if err != nil {
		return Identity{}, err
	}
	return a.IdentityFromBearer(token)
}

// IdentityFromBearer verifies a bearer token presented as raw bytes.
func (a *Auth) IdentityFromBearer(token []byte) (Identity, error) {
	if len(token) == 0 {
		return Identity{}, errBadAuthorization
	}

	parsed, err := a.parser.Parse(readOnlyString(token), a.key)
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	now := time.Now().Add(a.ClockSkew).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return Identity{}, errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return Identity{}, errors.New("token used before issued")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return Identity{}, errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return Identity{}, errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("missing sub")
	}
	id := Identity{UserID: sub}
	id.Email, _ = claims[a.EmailClaim].(string)
	id.Name, _ = claims["name"].(string)
	return id, nil
}

func (a *Auth) key(t *jwt.Token) (any, error) {
	if a.LocalMode {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.Secret, nil
	}
	return a.keyForToken(t)
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
