// Package auth issues and verifies the bearer tokens that gate the API.
//
// Tokens are HS256 JWTs carrying a subject and an absolute expiry. Nothing is
// stored server-side: a token stops working only when it expires or when its
// signature no longer matches the configured secret.
package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/statsgate/internal/errors"
)

const (
	// DefaultSubject is used when login is called without a username.
	DefaultSubject = "demo"

	// TokenTTL is the fixed lifetime of an issued token.
	TokenTTL = 2 * time.Hour
)

// Claims represents the JWT claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
}

// Gate issues and verifies tokens with one shared secret and decides which
// requests need a token at all.
type Gate struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	rules  []Rule
	parser *jwt.Parser
}

// Option customizes a Gate.
type Option func(*Gate)

// WithIssuer sets the iss claim written on issue and required on verify.
func WithIssuer(issuer string) Option {
	return func(g *Gate) { g.issuer = issuer }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithRules replaces the default exemption rules.
func WithRules(rules ...Rule) Option {
	return func(g *Gate) { g.rules = rules }
}

// NewGate creates a gate. The secret is copied; it is never read from the
// environment here.
func NewGate(secret string, opts ...Option) (*Gate, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}

	g := &Gate{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
		rules:  DefaultRules(),
	}
	for _, opt := range opts {
		opt(g)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return g.now() }),
	}
	if g.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(g.issuer))
	}
	g.parser = jwt.NewParser(parserOpts...)

	return g, nil
}

// Issue signs a token for subject, valid for TokenTTL from now. No credential
// is checked.
func (g *Gate) Issue(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = DefaultSubject
	}

	now := g.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, structure and expiry of a raw token.
func (g *Gate) Verify(tokenString string) (*Claims, error) {
	token, err := g.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims")
	}
	return claims, nil
}

// Authenticate verifies the token carried by an Authorization header value.
func (g *Gate) Authenticate(authHeader string) (*Claims, error) {
	token, err := ParseBearer(authHeader)
	if err != nil {
		return nil, err
	}
	return g.Verify(token)
}

// IsExempt reports whether a request may skip verification.
func (g *Gate) IsExempt(path, method string) bool {
	return Exempt(g.rules, path, method)
}

// ParseBearer extracts the token from "Bearer <token>". The scheme is matched
// case-insensitively.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.MissingCredential("missing Authorization header")
	}

	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", errors.MissingCredential("invalid Authorization format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.MissingCredential("missing bearer token")
	}
	return token, nil
}
