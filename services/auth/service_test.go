package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"rollcall/pkg/token"
)

type memAccounts struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]Account
	touched map[int64]time.Time
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[int64]Account{}, touched: map[int64]time.Time{}}
}

func (m *memAccounts) Create(_ context.Context, a Account) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Username == a.Username || strings.EqualFold(existing.Email, a.Email) {
			return Account{}, ErrDuplicateAccount
		}
	}
	m.nextID++
	a.ID = m.nextID
	m.byID[a.ID] = a
	return a, nil
}

func (m *memAccounts) ByUsername(_ context.Context, username string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Username == username {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (m *memAccounts) ByID(_ context.Context, id int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *memAccounts) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return ErrAccountNotFound
	}
	m.touched[id] = at
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	rows map[string]Session
	now  func() time.Time
	err  error
}

func newMemSessions() *memSessions {
	return &memSessions{rows: map[string]Session{}, now: time.Now}
}

func (m *memSessions) Create(_ context.Context, accountID int64, ttl time.Duration) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Session{}, m.err
	}
	now := m.now()
	s := Session{ID: uuid.NewString(), AccountID: accountID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	m.rows[s.ID] = s
	return s, nil
}

func (m *memSessions) IsLive(_ context.Context, id string, accountID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	s, ok := m.rows[id]
	return ok && s.AccountID == accountID && s.ExpiresAt.After(m.now()), nil
}

func (m *memSessions) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memSessions) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if !s.ExpiresAt.After(before) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func newTestService(t *testing.T) (*Service, *memAccounts, *memSessions) {
	t.Helper()
	codec, err := token.NewCodec([]byte("test-secret-test-secret-test-secret"))
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	accounts := newMemAccounts()
	sessions := newMemSessions()
	svc, err := NewService(accounts, sessions, codec, Options{
		SessionTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		Logger:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, accounts, sessions
}

func registerAlice(t *testing.T, svc *Service) Account {
	t.Helper()
	acct, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "alice@example.edu",
		Password: "correct-horse",
		FullName: "Alice Liddell",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return acct
}

func TestRegisterHashesPasswordAndAssignsTeacherRole(t *testing.T) {
	svc, accounts, _ := newTestService(t)
	acct := registerAlice(t, svc)

	if acct.Role != RoleTeacher {
		t.Fatalf("role = %q, want %q", acct.Role, RoleTeacher)
	}
	stored, _ := accounts.ByID(context.Background(), acct.ID)
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-horse" {
		t.Fatalf("password not hashed: %q", stored.PasswordHash)
	}

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "other@example.edu",
		Password: "whatever",
		FullName: "Other",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("duplicate register err = %v, want ErrDuplicateAccount", err)
	}
}

func TestLoginCreatesExactlyOneSession(t *testing.T) {
	svc, accounts, sessions := newTestService(t)
	acct := registerAlice(t, svc)

	res, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := sessions.count(); got != 1 {
		t.Fatalf("sessions = %d, want 1", got)
	}
	if res.Token == "" || res.Session.AccountID != acct.ID {
		t.Fatalf("unexpected login result: %+v", res)
	}
	if _, ok := accounts.touched[acct.ID]; !ok {
		t.Fatal("last login not recorded")
	}
	if res.Account.LastLoginAt == nil {
		t.Fatal("returned account has no last login")
	}

	if _, err := svc.Login(context.Background(), "alice", "correct-horse"); err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if got := sessions.count(); got != 2 {
		t.Fatalf("sessions after second login = %d, want 2", got)
	}
	if _, err := svc.Authenticate(context.Background(), res.Token); err != nil {
		t.Fatalf("first token invalidated by second login: %v", err)
	}
}

func TestLoginInvalidCredentialsCreatesNoSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	registerAlice(t, svc)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "bob", "correct-horse"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.username, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
			if got := sessions.count(); got != 0 {
				t.Fatalf("sessions = %d, want 0", got)
			}
		})
	}
}

func TestAuthenticateReturnsIssuedClaims(t *testing.T) {
	svc, _, _ := newTestService(t)
	acct := registerAlice(t, svc)

	res, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.Authenticate(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if claims.AccountID != acct.ID || claims.Username != "alice" || claims.Role != RoleTeacher ||
		claims.FullName != "Alice Liddell" || claims.SessionID != res.Session.ID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthenticateFailureKinds(t *testing.T) {
	svc, _, sessions := newTestService(t)
	registerAlice(t, svc)
	res, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("empty token err = %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token err = %v", err)
	}
	if RejectionReason(ErrSessionExpired) != "session_expired" {
		t.Fatal("unexpected rejection reason")
	}

	sessions.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, err := svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expired session err = %v, want ErrSessionExpired", err)
	}

	sessions.now = time.Now
	sessions.err = errors.New("connection refused")
	_, err = svc.Authenticate(context.Background(), res.Token)
	if err == nil || RejectionReason(err) != "" {
		t.Fatalf("store failure err = %v, want non-rejection error", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, _, sessions := newTestService(t)
	registerAlice(t, svc)
	res, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(context.Background(), res.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := sessions.count(); got != 0 {
		t.Fatalf("sessions = %d, want 0", got)
	}
	if _, err := svc.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("after logout err = %v, want ErrSessionExpired", err)
	}

	if err := svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout without token: %v", err)
	}
	if err := svc.Logout(context.Background(), "garbage"); err != nil {
		t.Fatalf("Logout with garbage token: %v", err)
	}
}

func TestAccountNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Account(context.Background(), 42); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestSweeperPrunesExpired(t *testing.T) {
	sessions := newMemSessions()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return base }
	if _, err := sessions.Create(context.Background(), 1, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Create(context.Background(), 1, 48*time.Hour); err != nil {
		t.Fatal(err)
	}

	sw, err := NewSweeper(sessions, time.Minute, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	sw.now = func() time.Time { return base.Add(2 * time.Hour) }
	var reported int64
	sw.OnPrune = func(n int64) { reported = n }

	n, err := sw.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 || reported != 1 || sessions.count() != 1 {
		t.Fatalf("pruned=%d reported=%d remaining=%d", n, reported, sessions.count())
	}

	if _, err := NewSweeper(sessions, 0, zerolog.Nop()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
