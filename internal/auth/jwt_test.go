package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := "test-secret-12345"
	userID := uuid.New()

	tokenStr, err := GenerateJWT(secret, userID, "operator", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT(secret, tokenStr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("expected user id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != "operator" {
		t.Errorf("expected role operator, got %s", claims.Role)
	}
	if claims.Issuer != "campfund" {
		t.Errorf("expected issuer campfund, got %s", claims.Issuer)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tokenStr, err := GenerateJWT("secret-a", uuid.New(), "admin", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ParseJWT("secret-b", tokenStr); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}

func TestParseJWT_Expired(t *testing.T) {
	secret := "test-secret-12345"

	claims := Claims{
		UserID: uuid.New(),
		Role:   "creator",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			Issuer:    "campfund",
		},
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseJWT(secret, tokenStr); err == nil {
		t.Fatal("expected error for expired token, got nil")
	}
}

func TestParseJWT_Garbage(t *testing.T) {
	if _, err := ParseJWT("secret", "not.a.token"); err == nil {
		t.Fatal("expected error for malformed token, got nil")
	}
}
