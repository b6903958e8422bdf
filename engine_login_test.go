package goPasskey

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginIssuesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)

	ctx := context.Background()
	result, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.SessionToken == "" {
		t.Fatal("expected a session token")
	}
	if result.UserID != "user-1" {
		t.Fatalf("expected user-1, got %q", result.UserID)
	}
	if result.SecondFactorRequired {
		t.Fatal("user has no second factor enrolled")
	}

	info, err := env.engine.ValidateSession(ctx, result.SessionToken)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if !info.FullyVerified {
		t.Fatal("expected single-factor user to be fully verified")
	}
	if info.TwoFactorVerified || info.PasskeyVerified {
		t.Fatal("fresh password session must not carry factor flags")
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected 1 login success, got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("expected 1 session created, got %d", snap.Counters[MetricSessionCreated])
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)

	ctx := context.Background()

	_, wrongPassword := env.engine.Login(ctx, "alice@example.com", "wrong-password")
	_, unknownUser := env.engine.Login(ctx, "nobody@example.com", "wrong-password")

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatal("failure modes must be indistinguishable")
	}
}

func TestLoginEmptyInputRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.Login(context.Background(), "", "")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnverifiedAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", false, false)

	_, err := env.engine.Login(context.Background(), "alice@example.com", "correct-horse-battery")
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestLoginSecondFactorPending(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, true)

	ctx := context.Background()
	result, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !result.SecondFactorRequired {
		t.Fatal("expected second factor to be required")
	}

	info, err := env.engine.ValidateSession(ctx, result.SessionToken)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if info.FullyVerified {
		t.Fatal("pending session must not be fully verified")
	}
}

func TestLoginThrottleLockout(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)

	ctx := context.Background()

	// Grace is 2; the third failure starts the 1s lockout.
	for i := 0; i < 3; i++ {
		if _, err := env.engine.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("failure %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	// Even the correct password is refused while blocked.
	if _, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}

	// Once the block expires the correct password succeeds and the
	// failure history is wiped.
	env.engine.loginThrottle.Now = func() time.Time { return time.Now().Add(1500 * time.Millisecond) }
	result, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login after block expiry failed: %v", err)
	}
	if result.SessionToken == "" {
		t.Fatal("expected a session token")
	}
}

func TestValidateSessionUnknownToken(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.engine.ValidateSession(context.Background(), "not-a-real-token")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateSessionDeletedUser(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)

	ctx := context.Background()
	result, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Simulate account deletion out from under a live session.
	env.users.mu.Lock()
	delete(env.users.users, "user-1")
	env.users.mu.Unlock()

	if _, err := env.engine.ValidateSession(ctx, result.SessionToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestLogoutDestroysSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)

	ctx := context.Background()
	result, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := env.engine.Logout(ctx, result.SessionToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := env.engine.ValidateSession(ctx, result.SessionToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}

	// Logging out a dead session is a no-op.
	if err := env.engine.Logout(ctx, result.SessionToken); err != nil {
		t.Fatalf("repeated Logout failed: %v", err)
	}
}

func TestLogoutAllDestroysEverySession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)

	ctx := context.Background()
	first, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := env.engine.Login(ctx, "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}

	if err := env.engine.LogoutAll(ctx, "user-1"); err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}

	for _, token := range []string{first.SessionToken, second.SessionToken} {
		if _, err := env.engine.ValidateSession(ctx, token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	}
}
