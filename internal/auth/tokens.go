package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the token failed signature checks or had malformed structure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")
	// ErrWrongRun is returned when a valid token names a different run.
	ErrWrongRun = errors.New("token issued for another run")
)

const issuer = "hordeforge"

// RunClaims is the payload of a run token. The subject is the run identifier.
type RunClaims struct {
	Loadout string `json:"loadout,omitempty"`
	jwt.RegisteredClaims
}

// RunID returns the run the token was issued for.
func (c *RunClaims) RunID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// TokenIssuer signs and verifies HS256 run tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewTokenIssuer constructs an issuer for the supplied shared secret, token lifetime and clock skew allowance.
func NewTokenIssuer(secret string, ttl, leeway time.Duration) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if leeway < 0 {
		leeway = 0
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, leeway: leeway, now: time.Now}, nil
}

// WithClock overrides the issuer clock, enabling deterministic unit tests.
func (i *TokenIssuer) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	i.now = clock
}

// Issue signs a token bound to runID.
func (i *TokenIssuer) Issue(runID, loadout string) (string, time.Time, error) {
	if i == nil || len(i.secret) == 0 {
		return "", time.Time{}, errors.New("issuer not initialised")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return "", time.Time{}, errors.New("run id must not be empty")
	}
	now := i.now()
	expires := now.Add(i.ttl)
	claims := RunClaims{
		Loadout: loadout,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   runID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign run token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses the token and validates the signature, issuer and expiry, returning the embedded claims.
func (i *TokenIssuer) Verify(token string) (*RunClaims, error) {
	if i == nil || len(i.secret) == 0 {
		return nil, errors.New("issuer not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	)
	claims := &RunClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRun checks the token and that it was issued for runID.
func (i *TokenIssuer) VerifyRun(token, runID string) (*RunClaims, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Subject != runID {
		return nil, ErrWrongRun
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
