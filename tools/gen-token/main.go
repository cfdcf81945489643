package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

type tokenOptions struct {
	secret   []byte
	audience string
	issuer   string
	ttl      time.Duration
	domain   string
}

func main() {
	var (
		count    = flag.Int("count", 1, "number of tokens to generate")
		prefix   = flag.String("prefix", "dev-user", "prefix for generated user IDs when count > 1")
		start    = flag.Int("start", 1, "starting index for generated user IDs when count > 1")
		output   = flag.String("output", "", "file to write generated tokens as a JSON array")
		ttl      = flag.Duration("ttl", time.Hour, "token lifetime")
		audience = flag.String("audience", os.Getenv("AUTH0_AUDIENCE"), "aud claim")
		issuer   = flag.String("issuer", "", "iss claim")
		domain   = flag.String("email-domain", "example.com", "domain of the email claim")
	)
	flag.Parse()

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}
	if *start < 1 {
		log.Fatal("start index must be at least 1")
	}
	args := flag.Args()
	if len(args) > 0 && *count > 1 {
		log.Fatal("explicit user ID cannot be provided when generating multiple tokens")
	}
	secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
	if secret == "" {
		log.Fatal("LOCAL_AUTH_SHARED_SECRET must be set")
	}

	opts := tokenOptions{secret: []byte(secret), audience: *audience, issuer: *issuer, ttl: *ttl, domain: *domain}
	tokens, err := generateTokens(opts, *count, *prefix, *start, args, time.Now())
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

func userIDs(count int, prefix string, start int, args []string) []string {
	ids := make([]string, count)
	for i := range ids {
		switch {
		case len(args) > 0:
			ids[i] = args[0]
		case count == 1:
			ids[i] = prefix
		default:
			ids[i] = fmt.Sprintf("%s-%d", prefix, start+i)
		}
	}
	return ids
}

func generateTokens(opts tokenOptions, count int, prefix string, start int, args []string, now time.Time) ([]string, error) {
	ids := userIDs(count, prefix, start, args)
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tok, err := signToken(opts, id, now)
		if err != nil {
			return nil, err
		}
		tokens[i] = tok
	}
	return tokens, nil
}

// signToken issues an HS256 token accepted by LOCAL_AUTH_MODE=hs256.
func signToken(opts tokenOptions, userID string, now time.Time) (string, error) {
	if len(opts.secret) == 0 {
		return "", errors.New("secret is required")
	}
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": userID + "@" + opts.domain,
		"name":  userID,
		"iat":   now.Unix(),
		"exp":   now.Add(opts.ttl).Unix(),
	}
	if opts.audience != "" {
		claims["aud"] = opts.audience
	}
	if opts.issuer != "" {
		claims["iss"] = opts.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(opts.secret)
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
