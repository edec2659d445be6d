package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rollcall/pkg/token"
	"rollcall/services/attendance"
	"rollcall/services/auth"
)

type fakeUser struct {
	account  auth.Account
	password string
}

type fakeAuth struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]*fakeUser
	sessions map[string]token.Claims
	issued   int
	failLive bool
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]*fakeUser{}, sessions: map[string]token.Claims{}}
}

func (f *fakeAuth) addUser(username, password, role string) auth.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	acct := auth.Account{
		ID:           f.nextID,
		Username:     username,
		Email:        username + "@example.edu",
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		Role:         role,
		PasswordHash: "$2a$10$hash-of-" + password,
	}
	f.users[username] = &fakeUser{account: acct, password: password}
	return acct
}

func (f *fakeAuth) Register(_ context.Context, in auth.RegisterInput) (auth.Account, error) {
	f.mu.Lock()
	for _, u := range f.users {
		if u.account.Username == in.Username || u.account.Email == in.Email {
			f.mu.Unlock()
			return auth.Account{}, auth.ErrDuplicateAccount
		}
	}
	f.mu.Unlock()
	acct := f.addUser(in.Username, in.Password, auth.RoleTeacher)
	acct.Email = in.Email
	acct.FullName = in.FullName
	return acct, nil
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (auth.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok || u.password != password {
		return auth.LoginResult{}, auth.ErrInvalidCredentials
	}
	f.issued++
	raw := fmt.Sprintf("tok-%d", f.issued)
	sessionID := fmt.Sprintf("sess-%d", f.issued)
	f.sessions[raw] = token.Claims{
		AccountID: u.account.ID,
		Username:  u.account.Username,
		Role:      u.account.Role,
		FullName:  u.account.FullName,
		SessionID: sessionID,
	}
	return auth.LoginResult{
		Account: u.account,
		Token:   raw,
		Session: auth.Session{ID: sessionID, AccountID: u.account.ID},
	}, nil
}

func (f *fakeAuth) Logout(_ context.Context, raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, raw)
	return nil
}

func (f *fakeAuth) Authenticate(_ context.Context, raw string) (token.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case raw == "":
		return token.Claims{}, auth.ErrUnauthenticated
	case !strings.HasPrefix(raw, "tok-"):
		return token.Claims{}, fmt.Errorf("%w: malformed", auth.ErrInvalidToken)
	case f.failLive:
		return token.Claims{}, errors.New("connection refused")
	}
	claims, ok := f.sessions[raw]
	if !ok {
		return token.Claims{}, auth.ErrSessionExpired
	}
	return claims, nil
}

func (f *fakeAuth) Account(_ context.Context, id int64) (auth.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.account.ID == id {
			return u.account, nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (f *fakeAuth) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeAttendance struct {
	mu         sync.Mutex
	submitted  []attendance.Submission
	submitErr  error
	students   map[int64]attendance.Student
	nextID     int64
	pingErr    error
	historyErr error
}

func newFakeAttendance() *fakeAttendance {
	return &fakeAttendance{students: map[int64]attendance.Student{}}
}

func (f *fakeAttendance) Submit(_ context.Context, sub attendance.Submission) error {
	if _, err := sub.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, sub)
	return nil
}

func (f *fakeAttendance) Sheet(_ context.Context, date, division string, _ int64) ([]attendance.SheetRow, error) {
	if _, err := attendance.ParseDate(date); err != nil {
		return nil, err
	}
	return []attendance.SheetRow{{StudentID: 1, RollNo: "01", Name: "Ada", Division: division}}, nil
}

func (f *fakeAttendance) Divisions(context.Context, int64) ([]string, error) {
	return []string{"A", "B"}, nil
}

func (f *fakeAttendance) History(context.Context, int64) ([]attendance.HistoryRow, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return []attendance.HistoryRow{}, nil
}

func (f *fakeAttendance) ListStudents(context.Context, string) ([]attendance.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []attendance.Student{}
	for _, st := range f.students {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeAttendance) CreateStudent(_ context.Context, st attendance.Student) (attendance.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	st.ID = f.nextID
	f.students[st.ID] = st
	return st, nil
}

func (f *fakeAttendance) UpdateStudent(_ context.Context, id int64, patch attendance.StudentPatch) (attendance.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.students[id]
	if !ok {
		return attendance.Student{}, attendance.ErrStudentNotFound
	}
	if patch.Name != nil {
		st.Name = *patch.Name
	}
	f.students[id] = st
	return st, nil
}

func (f *fakeAttendance) DeleteStudent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.students[id]; !ok {
		return attendance.ErrStudentNotFound
	}
	delete(f.students, id)
	return nil
}

func (f *fakeAttendance) StudentAttendance(_ context.Context, id int64) ([]attendance.StudentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.students[id]; !ok {
		return nil, attendance.ErrStudentNotFound
	}
	return []attendance.StudentRecord{}, nil
}

func (f *fakeAttendance) Ping(context.Context) error { return f.pingErr }

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

type testEnv struct {
	api     *API
	handler http.Handler
	auth    *fakeAuth
	store   *fakeAttendance
	pub     *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	authn := newFakeAuth()
	store := newFakeAttendance()
	pub := &recordingPublisher{}

	a, err := New(authn, store, Config{TokenTTL: 24 * time.Hour}, Options{
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h, err := a.Routes()
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	return &testEnv{api: a, handler: h, auth: authn, store: store, pub: pub}
}

func (e *testEnv) do(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", fmt.Sprintf(`{"username":%q,"password":%q}`, username, password), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokenCookie {
			return c.Value
		}
	}
	t.Fatal("login did not set token cookie")
	return ""
}

func TestHealthAndReadiness(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
	env.store.pingErr = errors.New("db down")
	if rec := env.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with db down = %d", rec.Code)
	}
}
