package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wiredm/internal/crypto"
	"github.com/vovakirdan/wiredm/internal/store/sqlite"
)

var (
	pemOnce sync.Once
	pemKey  string
	pemErr  error
)

func testPublicKey(t *testing.T) string {
	t.Helper()
	pemOnce.Do(func() {
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			pemErr = err
			return
		}
		b, err := crypto.EncodePublicKey(kp.Public)
		pemKey, pemErr = string(b), err
	})
	if pemErr != nil {
		t.Fatalf("generate public key: %v", pemErr)
	}
	return pemKey
}

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(st, jwtConfig)
}

func TestRegister_RejectsInvalidUsername(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()
	pub := testPublicKey(t)

	if _, err := svc.Register(ctx, "ab", "password123", pub); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Register(ctx, " ab ", "password123", pub); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestRegister_RejectsInvalidPassword(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "abc", "12345", testPublicKey(t)); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestRegister_RejectsInvalidPublicKey(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	for _, key := range []string{"", "not a key", "-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n"} {
		if _, err := svc.Register(ctx, "alice", "password123", key); !errors.Is(err, ErrInvalidPublicKey) {
			t.Fatalf("expected ErrInvalidPublicKey for %q, got %v", key, err)
		}
	}
}

func TestRegister_TrimsUsernameAndCreatesUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()
	pub := testPublicKey(t)

	sess, err := svc.Register(ctx, " alice ", "password123", pub)
	if err != nil {
		t.Fatalf("expected registration success, got %v", err)
	}
	if sess.Token == "" {
		t.Fatalf("expected non-empty token")
	}
	if sess.User.Username != "alice" || sess.User.PublicKey != pub {
		t.Fatalf("unexpected user: %+v", sess.User)
	}

	claims, err := svc.ValidateToken(sess.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != sess.User.ID || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// Should collide because the stored username is trimmed.
	if _, err := svc.Register(ctx, "alice", "password123", pub); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "password123", testPublicKey(t))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	sess, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.User.ID != reg.User.ID {
		t.Fatalf("login returned different identity")
	}

	if _, err := svc.Login(ctx, "alice", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
