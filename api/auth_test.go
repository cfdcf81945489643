package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-123",
		"aud":   "api://vess",
		"iss":   "https://issuer/",
		"email": "ada@example.com",
		"name":  "Ada",
		"exp":   time.Now().Add(5 * time.Minute).Unix(),
		"nbf":   time.Now().Add(-time.Minute).Unix(),
		"iat":   time.Now().Add(-time.Minute).Unix(),
	}
}

func TestBearerTokenFromString(t *testing.T) {
	token, err := bearerTokenFromString("  Bearer header.payload.signature ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(token) != "header.payload.signature" {
		t.Fatalf("unexpected token content: %s", string(token))
	}

	if _, err := bearerTokenFromString("   "); err != errMissingAuthorization {
		t.Fatalf("expected missing header error, got %v", err)
	}
	for _, raw := range []string{"Basic abc.def.ghi", "Bearer ", "Bearer " + strings.Repeat(".", 1000), "Bearer abc"} {
		if _, err := bearerTokenFromString(raw); err != errBadAuthorization {
			t.Fatalf("%q: expected bad auth header error, got %v", raw, err)
		}
	}
}

func TestIdentityFromAuthHeaderHS256(t *testing.T) {
	secret := []byte("test-secret")
	auth := NewLocalAuth(secret, "api://vess", "https://issuer/")

	id, err := auth.IdentityFromAuthHeader("Bearer " + signHS256(t, secret, validClaims()))
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if id.UserID != "user-123" || id.Email != "ada@example.com" || id.Name != "Ada" {
		t.Fatalf("unexpected identity: %#v", id)
	}
	userID, err := auth.UserIDFromAuthHeader("Bearer " + signHS256(t, secret, validClaims()))
	if err != nil || userID != "user-123" {
		t.Fatalf("unexpected user id %q, err %v", userID, err)
	}
}

func TestIdentityRejectsBadTokens(t *testing.T) {
	secret := []byte("test-secret")
	auth := NewLocalAuth(secret, "api://vess", "https://issuer/")

	cases := map[string]func(jwt.MapClaims){
		"expired":      func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-5 * time.Minute).Unix() },
		"audience":     func(c jwt.MapClaims) { c["aud"] = "api://other" },
		"issuer":       func(c jwt.MapClaims) { c["iss"] = "https://evil/" },
		"missing sub":  func(c jwt.MapClaims) { delete(c, "sub") },
		"future token": func(c jwt.MapClaims) { c["nbf"] = time.Now().Add(time.Hour).Unix() },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			claims := validClaims()
			mutate(claims)
			if _, err := auth.IdentityFromAuthHeader("Bearer " + signHS256(t, secret, claims)); err == nil {
				t.Fatal("expected token to be rejected")
			}
		})
	}

	if _, err := auth.IdentityFromAuthHeader("Bearer " + signHS256(t, []byte("other"), validClaims())); err == nil {
		t.Fatal("expected wrong secret to be rejected")
	}
	if _, err := auth.IdentityFromAuthHeader(""); err != errMissingAuthorization {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestNewAuthFromEnvironment(t *testing.T) {
	t.Setenv(envLocalAuthMode, "hs256")
	t.Setenv(envLocalAuthSecret, "")
	if _, err := NewAuth(nil, "", ""); err == nil {
		t.Fatal("expected error without shared secret")
	}

	t.Setenv(envLocalAuthSecret, "s3cret")
	auth, err := NewAuth(nil, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !auth.LocalMode || string(auth.Secret) != "s3cret" {
		t.Fatalf("expected local mode with secret, got %#v", auth)
	}

	t.Setenv(envLocalAuthMode, "plaintext")
	if _, err := NewAuth(nil, "", ""); err == nil {
		t.Fatal("expected unsupported mode error")
	}

	t.Setenv(envLocalAuthMode, "")
	if _, err := NewAuth(nil, "", ""); err == nil {
		t.Fatal("expected error without jwks outside local mode")
	}

	t.Setenv(envJWKSCacheTTL, "-1s")
	t.Setenv(envLocalAuthMode, "hs256")
	if _, err := NewAuth(nil, "", ""); err == nil {
		t.Fatal("expected invalid cache ttl error")
	}
}
