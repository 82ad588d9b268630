package auth

import (
	"errors"
	"testing"
)

func TestGenerateAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateAccessToken("user-123", "shopper@example.com", "customer")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("expected subject user-123, got %q", claims.Subject)
	}
	if claims.Email != "shopper@example.com" {
		t.Errorf("expected email claim, got %q", claims.Email)
	}
	if claims.Role != "customer" {
		t.Errorf("expected role customer, got %q", claims.Role)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("expected access token type, got %q", claims.Type)
	}
}

func TestGenerateAccessToken_EmptyUserID(t *testing.T) {
	svc := NewJWTService("test-secret")

	if _, err := svc.GenerateAccessToken("", "shopper@example.com", "customer"); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateRefreshToken("user-123")
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.Type != TokenTypeRefresh {
		t.Errorf("expected refresh token type, got %q", claims.Type)
	}
	if claims.Email != "" {
		t.Errorf("refresh token should not carry email, got %q", claims.Email)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("other-secret")

	token, err := svc.GenerateAccessToken("user-123", "", "")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewJWTService("test-secret")

	if _, err := svc.ValidateToken("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Rotation(t *testing.T) {
	oldSvc := NewJWTService("old-secret")
	token, err := oldSvc.GenerateAccessToken("user-123", "shopper@example.com", "customer")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	// A rotated service signs with the new secret but still accepts
	// tokens signed with the old one
	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")
	claims, err := rotated.ValidateToken(token)
	if err != nil {
		t.Fatalf("expected token signed with previous secret to validate, got %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("expected subject user-123, got %q", claims.Subject)
	}

	// Without the previous secret the old token is rejected
	fresh := NewJWTService("new-secret")
	if _, err := fresh.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken without rotation, got %v", err)
	}
}
