package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestIssuer(t *testing.T, secret string, now time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(secret, time.Minute, time.Second)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	issuer.WithClock(func() time.Time { return now })
	return issuer
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := newTestIssuer(t, "secret", now)

	token, expires, err := issuer.Issue("run-7", "ranger")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expires.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry %v", expires)
	}
	claims, err := issuer.VerifyRun(token, "run-7")
	if err != nil {
		t.Fatalf("VerifyRun returned error: %v", err)
	}
	if claims.RunID() != "run-7" || claims.Loadout != "ranger" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := newTestIssuer(t, "secret", now)
	token, _, err := issuer.Issue("run-7", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	issuer.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := issuer.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestTokenIssuerRejectsInvalidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	other := newTestIssuer(t, "other-secret", now)
	token, _, err := other.Issue("run-7", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	issuer := newTestIssuer(t, "secret", now)
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenIssuerRejectsOtherAlgorithms(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := newTestIssuer(t, "secret", now)
	claims := RunClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "hordeforge",
		Subject:   "run-7",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for HS512, got %v", err)
	}
}

func TestTokenIssuerRejectsOtherRun(t *testing.T) {
	issuer := newTestIssuer(t, "secret", time.Unix(1700000000, 0))
	token, _, err := issuer.Issue("run-7", "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := issuer.VerifyRun(token, "run-8"); !errors.Is(err, ErrWrongRun) {
		t.Fatalf("expected ErrWrongRun, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
	}
	for header, want := range tests {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q; want %q", header, got, want)
		}
	}
}

func TestNewTokenIssuerValidatesInput(t *testing.T) {
	if _, err := NewTokenIssuer(" ", time.Minute, 0); err == nil {
		t.Fatal("expected empty secret to fail")
	}
	if _, err := NewTokenIssuer("secret", 0, 0); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
}
