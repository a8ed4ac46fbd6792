package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("secret"), Issuer: "wiredm", Audience: "wiredm-clients", TTL: time.Hour}

	token, err := GenerateToken(cfg, "3f0c6d0e-1d2b-4c55-9a7e-6c1b2a9d8e7f", "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "3f0c6d0e-1d2b-4c55-9a7e-6c1b2a9d8e7f" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateTokenRejects(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("secret"), Issuer: "wiredm", Audience: "wiredm-clients", TTL: time.Hour}
	good, err := GenerateToken(cfg, "u1", "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	expiredCfg := *cfg
	expiredCfg.TTL = -time.Minute
	expired, _ := GenerateToken(&expiredCfg, "u1", "alice")

	otherIssuer := *cfg
	otherIssuer.Issuer = "someone-else"
	wrongIssuer, _ := GenerateToken(&otherIssuer, "u1", "alice")

	otherAudience := *cfg
	otherAudience.Audience = "elsewhere"
	wrongAudience, _ := GenerateToken(&otherAudience, "u1", "alice")

	otherSecret := *cfg
	otherSecret.Secret = []byte("other")
	wrongSecret, _ := GenerateToken(&otherSecret, "u1", "alice")

	noUser, _ := GenerateToken(cfg, "", "alice")

	tests := map[string]string{
		"garbage":        "not-a-token",
		"expired":        expired,
		"wrong issuer":   wrongIssuer,
		"wrong audience": wrongAudience,
		"wrong secret":   wrongSecret,
		"missing user":   noUser,
		"tampered":       good[:len(good)-2] + "xx",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ValidateToken(cfg, token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected %s token to be rejected with ErrInvalidToken, got %v", name, err)
			}
		})
	}
}
