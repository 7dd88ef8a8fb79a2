package security

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

func TestGenerateVerify(t *testing.T) {
	opts := DefaultOptions([]byte("unit-test-secret"))

	token, hash, exp, err := Generate(opts, "u1@example.com")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatal("empty token or hash")
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry not in the future: %v", exp)
	}

	claims, err := Verify(opts, token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.UserID != "u1@example.com" {
		t.Fatalf("unexpected subject: %s", claims.UserID)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, _, err := Generate(DefaultOptions([]byte("secret-a")), "u1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := Verify(DefaultOptions([]byte("secret-b")), token); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestVerifyExpired(t *testing.T) {
	opts := DefaultOptions([]byte("secret"))
	now := time.Now().Add(-time.Hour)
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "u1",
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
	})
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := Verify(opts, signed); err == nil {
		t.Fatal("expected expired token to fail verification")
	}
}
