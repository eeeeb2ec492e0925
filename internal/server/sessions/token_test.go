package sessions

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")

	tok, err := GenerateToken("sess-123", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	got, err := GetSessionIDFromToken(tok, secret)
	if err != nil {
		t.Fatalf("GetSessionIDFromToken error: %v", err)
	}
	if got != "sess-123" {
		t.Fatalf("session id mismatch: got %q", got)
	}
}

func TestGetSessionIDFromToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("s1", secret, -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := GetSessionIDFromToken(tok, secret); err != common.ErrTokenExpired {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}

	id, err := sessionIDIgnoringExpiry(tok, secret)
	if err != nil || id != "s1" {
		t.Fatalf("expected id without expiry check, got %q, %v", id, err)
	}
}

func TestGetSessionIDFromToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateToken("s2", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	if _, err := GetSessionIDFromToken(tok, []byte("wrong-secret")); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
	if _, err := sessionIDIgnoringExpiry(tok, []byte("wrong-secret")); err == nil {
		t.Fatalf("signature must still be checked")
	}
}

func TestGetSessionIDFromToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{ID: "s3"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := GetSessionIDFromToken(tok, []byte("secret")); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetSessionIDFromToken_MissingID(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := GetSessionIDFromToken(tok, secret); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestGetSessionIDFromToken_Garbage(t *testing.T) {
	t.Parallel()

	if _, err := GetSessionIDFromToken("not-a-jwt", []byte("k")); err != common.ErrInvalidToken {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}
