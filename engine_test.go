package goPasskey

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goPasskey/password"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// newTestHasher uses the cheapest parameters Validate accepts so seeding
// users stays fast.
func newTestHasher(t *testing.T) *password.Hasher {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("password.NewHasher failed: %v", err)
	}
	return hasher
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Passkey.RelyingPartyID = "localhost"
	cfg.Passkey.Origin = "http://localhost:8080"
	cfg.Passkey.RelyingPartyName = "goPasskey test"
	cfg.TOTP.Issuer = "goPasskey test"
	cfg.PasswordReset.Enabled = true
	cfg.Password = PasswordConfig{
		Memory:      8192,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	engine   *Engine
	users    *mockUserProvider
	passkeys *mockPasskeyProvider
	mr       *miniredis.Miniredis
	hasher   *password.Hasher
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	users := newMockUserProvider()
	passkeys := newMockPasskeyProvider()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(users).
		WithPasskeyProvider(passkeys).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine:   engine,
		users:    users,
		passkeys: passkeys,
		mr:       mr,
		hasher:   newTestHasher(t),
	}
}

func (env *testEnv) seedUser(t *testing.T, userID, identifier, plaintext string, emailVerified, totpEnabled bool) {
	t.Helper()

	hash, err := env.hasher.Hash(plaintext)
	if err != nil {
		t.Fatalf("seed hash failed: %v", err)
	}
	env.users.putUser(UserRecord{
		UserID:        userID,
		Identifier:    identifier,
		PasswordHash:  hash,
		EmailVerified: emailVerified,
		TOTPEnabled:   totpEnabled,
	})
}

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string
	totpRecords  map[string]*TOTPRecord

	updateHashCalls    int
	counterUpdateCalls int
	failCounterUpdate  bool
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:        make(map[string]UserRecord),
		byIdentifier: make(map[string]string),
		totpRecords:  make(map[string]*TOTPRecord),
	}
}

func (p *mockUserProvider) putUser(u UserRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.UserID] = u
	p.byIdentifier[u.Identifier] = u.UserID
}

func (p *mockUserProvider) putTOTP(userID string, record *TOTPRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totpRecords[userID] = record
}

func (p *mockUserProvider) passwordHash(userID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users[userID].PasswordHash
}

func (p *mockUserProvider) lastUsedCounter(userID string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if record, ok := p.totpRecords[userID]; ok {
		return record.LastUsedCounter
	}
	return 0
}

func (p *mockUserProvider) GetUserByIdentifier(identifier string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, errors.New("user not found")
	}
	return p.users[userID], nil
}

func (p *mockUserProvider) GetUserByID(userID string) (UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return UserRecord{}, errors.New("user not found")
	}
	return user, nil
}

func (p *mockUserProvider) UpdatePasswordHash(userID string, newHash string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.PasswordHash = newHash
	p.users[userID] = user
	p.updateHashCalls++
	return nil
}

func (p *mockUserProvider) GetTOTPSecret(_ context.Context, userID string) (*TOTPRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.totpRecords[userID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (p *mockUserProvider) UpdateTOTPLastUsedCounter(_ context.Context, userID string, counter int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counterUpdateCalls++
	if p.failCounterUpdate {
		return errors.New("counter update failed")
	}
	record, ok := p.totpRecords[userID]
	if !ok {
		return errors.New("totp not configured")
	}
	record.LastUsedCounter = counter
	return nil
}

type mockPasskeyProvider struct {
	mu    sync.Mutex
	creds map[string][]PasskeyCredential

	saveCalls int
}

func newMockPasskeyProvider() *mockPasskeyProvider {
	return &mockPasskeyProvider{
		creds: make(map[string][]PasskeyCredential),
	}
}

func (p *mockPasskeyProvider) GetCredential(_ context.Context, credentialID []byte, userID string) (*PasskeyCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cred := range p.creds[userID] {
		if string(cred.CredentialID) == string(credentialID) {
			copied := cred
			return &copied, nil
		}
	}
	return nil, nil
}

func (p *mockPasskeyProvider) SaveCredential(_ context.Context, cred PasskeyCredential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.creds[cred.UserID] = append(p.creds[cred.UserID], cred)
	p.saveCalls++
	return nil
}

func (p *mockPasskeyProvider) DeleteCredential(_ context.Context, credentialID []byte, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.creds[userID][:0]
	for _, cred := range p.creds[userID] {
		if string(cred.CredentialID) != string(credentialID) {
			kept = append(kept, cred)
		}
	}
	p.creds[userID] = kept
	return nil
}

func (p *mockPasskeyProvider) ListCredentials(_ context.Context, userID string) ([]PasskeyCredential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PasskeyCredential, len(p.creds[userID]))
	copy(out, p.creds[userID])
	return out, nil
}

func (p *mockPasskeyProvider) RenameCredential(_ context.Context, credentialID []byte, userID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, cred := range p.creds[userID] {
		if string(cred.CredentialID) == string(credentialID) {
			p.creds[userID][i].Name = name
			return nil
		}
	}
	return errors.New("credential not found")
}
