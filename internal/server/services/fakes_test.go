package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/securepass/internal/common"
	"github.com/dmitrijs2005/securepass/internal/cryptox"
	"github.com/dmitrijs2005/securepass/internal/dbx"
	"github.com/dmitrijs2005/securepass/internal/kdfpool"
	"github.com/dmitrijs2005/securepass/internal/logging"
	"github.com/dmitrijs2005/securepass/internal/server/auth"
	"github.com/dmitrijs2005/securepass/internal/server/metrics"
	"github.com/dmitrijs2005/securepass/internal/server/models"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/recoverykeys"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/resettokens"
	"github.com/dmitrijs2005/securepass/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore is an in-memory stand-in for the PostgreSQL repositories.
type memStore struct {
	mu    sync.Mutex
	seq   int
	users map[string]*models.User
	creds map[string]*models.Credential
	toks  map[string]*models.ResetToken // by token value
	keys  map[string]*models.RecoveryKey

	// failure injection
	usersErr     error
	updateErr    error
	tokensErr    error
	keysErr      error
	credsErr     error
	markUsedLost bool
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*models.User{},
		creds: map[string]*models.Credential{},
		toks:  map[string]*models.ResetToken{},
		keys:  map[string]*models.RecoveryKey{},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usersErr != nil {
		return nil, r.s.usersErr
	}
	for _, e := range r.s.users {
		if e.UserName == u.UserName {
			return nil, fmt.Errorf("%w: users_username_key", common.ErrorAlreadyExists)
		}
		if e.Email == u.Email {
			return nil, fmt.Errorf("%w: users_email_key", common.ErrorAlreadyExists)
		}
	}
	u.ID = r.s.nextID("u")
	u.CreatedAt = time.Now()
	cp := *u
	r.s.users[u.ID] = &cp
	return u, nil
}

func (r memUsers) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.usersErr != nil {
		return nil, r.s.usersErr
	}
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r memUsers) GetByUsername(_ context.Context, name string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.UserName == name })
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r memUsers) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return r.s.updateErr
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r memUsers) ReplacePasswordHash(_ context.Context, id, oldHash, newHash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateErr != nil {
		return false, r.s.updateErr
	}
	u, ok := r.s.users[id]
	if !ok || u.PasswordHash != oldHash {
		return false, nil
	}
	u.PasswordHash = newHash
	return true, nil
}

type memCreds struct{ s *memStore }

func (r memCreds) Create(_ context.Context, c *models.Credential) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.credsErr != nil {
		return nil, r.s.credsErr
	}
	c.ID = r.s.nextID("c")
	c.CreatedAt = time.Unix(int64(r.s.seq), 0)
	cp := *c
	r.s.creds[c.ID] = &cp
	return c, nil
}

func (r memCreds) ListByUser(_ context.Context, userID string) ([]models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.credsErr != nil {
		return nil, r.s.credsErr
	}
	out := []models.Credential{}
	for _, c := range r.s.creds {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memCreds) Get(_ context.Context, userID, id string) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.credsErr != nil {
		return nil, r.s.credsErr
	}
	c, ok := r.s.creds[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r memCreds) Delete(_ context.Context, userID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.credsErr != nil {
		return r.s.credsErr
	}
	c, ok := r.s.creds[id]
	if !ok || c.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.s.creds, id)
	return nil
}

type memTokens struct{ s *memStore }

func (r memTokens) Create(_ context.Context, t *models.ResetToken) (*models.ResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.tokensErr != nil {
		return nil, r.s.tokensErr
	}
	if _, dup := r.s.toks[t.Token]; dup {
		return nil, fmt.Errorf("%w: reset_tokens_token_key", common.ErrorAlreadyExists)
	}
	t.ID = r.s.nextID("t")
	cp := *t
	r.s.toks[t.Token] = &cp
	return t, nil
}

func (r memTokens) Find(_ context.Context, token string) (*models.ResetToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.tokensErr != nil {
		return nil, r.s.tokensErr
	}
	t, ok := r.s.toks[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r memTokens) FindForUpdate(ctx context.Context, token string) (*models.ResetToken, error) {
	return r.Find(ctx, token)
}

func (r memTokens) MarkUsed(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.tokensErr != nil {
		return false, r.s.tokensErr
	}
	if r.s.markUsedLost {
		return false, nil
	}
	for _, t := range r.s.toks {
		if t.ID == id {
			if t.Used {
				return false, nil
			}
			t.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (r memTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.tokensErr != nil {
		return 0, r.s.tokensErr
	}
	var n int64
	for k, t := range r.s.toks {
		if t.Expiry.Before(now) {
			delete(r.s.toks, k)
			n++
		}
	}
	return n, nil
}

type memKeys struct{ s *memStore }

func (r memKeys) Upsert(_ context.Context, userID, keyHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.keysErr != nil {
		return r.s.keysErr
	}
	r.s.keys[userID] = &models.RecoveryKey{UserID: userID, KeyHash: keyHash, CreatedAt: time.Now()}
	return nil
}

func (r memKeys) Get(_ context.Context, userID string) (*models.RecoveryKey, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.keysErr != nil {
		return nil, r.s.keysErr
	}
	k, ok := r.s.keys[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *k
	return &cp, nil
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return memUsers{m.s} }
func (m *fakeRepoManager) Credentials(dbx.DBTX) credentials.Repository   { return memCreds{m.s} }
func (m *fakeRepoManager) ResetTokens(dbx.DBTX) resettokens.Repository   { return memTokens{m.s} }
func (m *fakeRepoManager) RecoveryKeys(dbx.DBTX) recoverykeys.Repository { return memKeys{m.s} }

// --- service wiring ---

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	store   *memStore
	clock   *clock
	metrics *metrics.Metrics
	vault   *Vault
	users   *UserService
	secrets *SecretService
	creds   *CredentialService
}

func newTestVault(t *testing.T, m *metrics.Metrics) *Vault {
	t.Helper()
	p := cryptox.DefaultParams()
	p.Iterations = 1000
	v, err := NewVault(p, kdfpool.New(2), m)
	require.NoError(t, err)
	return v
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := newMemStore()
	rm := &fakeRepoManager{s: store}
	mt := metrics.NewNop()
	vault := newTestVault(t, mt)
	log := logging.Nop()
	policy := auth.PasswordPolicy{MinLength: common.MinMasterSecretLength}
	clk := &clock{t: testNow}

	us := NewUserService(db, rm, vault, policy, log)
	ss := NewSecretService(db, rm, vault, SecretOptions{
		GrantSecret:      []byte("grant-secret"),
		ResetTokenTTL:    time.Hour,
		RecoveryGrantTTL: 10 * time.Minute,
		Policy:           policy,
	}, log, mt)
	ss.now = clk.now

	return &fixture{
		db: db, mock: mock, store: store, clock: clk, metrics: mt, vault: vault,
		users:   us,
		secrets: ss,
		creds:   NewCredentialService(db, rm, vault, us, log),
	}
}

// newPostgresFixture wires the services to the PostgreSQL repositories over
// sqlmock, so tests see what the real store does with odd input.
func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewPostgresRepositoryManager()
	mt := metrics.NewNop()
	vault := newTestVault(t, mt)
	log := logging.Nop()
	policy := auth.PasswordPolicy{MinLength: common.MinMasterSecretLength}

	us := NewUserService(db, rm, vault, policy, log)
	return &fixture{
		db: db, mock: mock, clock: &clock{t: testNow}, metrics: mt, vault: vault,
		users:   us,
		secrets: NewSecretService(db, rm, vault, SecretOptions{GrantSecret: []byte("grant-secret"), Policy: policy}, log, mt),
		creds:   NewCredentialService(db, rm, vault, us, log),
	}
}

func (f *fixture) register(t *testing.T, name, secret string) *models.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), name, name+"@example.com", secret)
	require.NoError(t, err)
	return u
}
