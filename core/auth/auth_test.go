package auth

import "testing"

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the plaintext password")
	}

	if !CheckPasswordHash("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("wrong", hash) {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "alice", "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ParseToken(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("UserID = %d, want 42", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want alice", claims.Username)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	token, err := GenerateToken(1, "bob", "secret-a")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := ParseToken(token, "secret-b"); err == nil {
		t.Error("token signed with a different secret was accepted")
	}
}

func TestTokenGarbageRejected(t *testing.T) {
	if _, err := ParseToken("not-a-token", "secret"); err == nil {
		t.Error("malformed token was accepted")
	}
}
