package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func testUser() *User {
	return &User{
		ID:    uuid.New(),
		Email: "ada@example.com",
		Name:  "Ada",
	}
}

func TestTokenPairRoundTrip(t *testing.T) {
	mgr := NewJWTManager("test-secret", 30*time.Minute, 7*24*time.Hour)
	user := testUser()

	pair, refreshHash, err := mgr.GenerateTokenPair(user)
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("expected Bearer token type, got %q", pair.TokenType)
	}
	if pair.ExpiresIn != int((30 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in: %d", pair.ExpiresIn)
	}
	if refreshHash == "" || refreshHash == pair.RefreshToken {
		t.Fatal("refresh token must be stored hashed, not verbatim")
	}
	if !CompareTokenHash(refreshHash, HashToken(pair.RefreshToken)) {
		t.Fatal("refresh hash does not match the issued token")
	}

	uc, err := mgr.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if uc.UserID != user.ID || uc.Email != user.Email || uc.Name != user.Name {
		t.Fatalf("claims round trip mismatch: %+v", uc)
	}
}

func TestValidateRejectsWrongKey(t *testing.T) {
	mgr := NewJWTManager("secret-a", time.Minute, time.Hour)
	other := NewJWTManager("secret-b", time.Minute, time.Hour)

	pair, _, err := mgr.GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if _, err := other.ValidateAccessToken(pair.AccessToken); err == nil {
		t.Fatal("expected validation failure with wrong signing key")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	mgr := NewJWTManager("secret", -time.Minute, time.Hour)

	pair, _, err := mgr.GenerateTokenPair(testUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if _, err := mgr.ValidateAccessToken(pair.AccessToken); err == nil {
		t.Fatal("expected validation failure for expired token")
	}
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := ExtractBearerToken("Basic abc"); err == nil {
		t.Fatal("expected error for non-bearer header")
	}
	tok, err := ExtractBearerToken("Bearer abc123")
	if err != nil {
		t.Fatalf("ExtractBearerToken failed: %v", err)
	}
	if tok != "abc123" {
		t.Fatalf("unexpected token: %q", tok)
	}
}
