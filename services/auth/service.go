package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rollcall/pkg/token"
)

type accountRepository interface {
	Create(ctx context.Context, a Account) (Account, error)
	ByUsername(ctx context.Context, username string) (Account, error)
	ByID(ctx context.Context, id int64) (Account, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type sessionRepository interface {
	Create(ctx context.Context, accountID int64, ttl time.Duration) (Session, error)
	IsLive(ctx context.Context, sessionID string, accountID int64) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
}

// Options tune a Service.
type Options struct {
	SessionTTL time.Duration
	BcryptCost int
	Logger     zerolog.Logger
}

// Service implements registration, login, logout and token authentication.
type Service struct {
	accounts accountRepository
	sessions sessionRepository
	codec    *token.Codec
	hasher   Hasher
	ttl      time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// RegisterInput carries a new teacher's details.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Account Account
	Token   string
	Session Session
}

func NewService(accounts accountRepository, sessions sessionRepository, codec *token.Codec, opts Options) (*Service, error) {
	if accounts == nil || sessions == nil || codec == nil {
		return nil, errors.New("accounts, sessions and codec are required")
	}
	if opts.SessionTTL <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	hasher, err := NewHasher(opts.BcryptCost)
	if err != nil {
		return nil, err
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		codec:    codec,
		hasher:   hasher,
		ttl:      opts.SessionTTL,
		log:      opts.Logger.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}, nil
}

// Register creates a teacher account. The caller validates field formats.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, err
	}

	acct, err := s.accounts.Create(ctx, Account{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         RoleTeacher,
		PasswordHash: hash,
	})
	if err != nil {
		return Account{}, err
	}
	s.log.Info().Int64("account_id", acct.ID).Str("username", acct.Username).Msg("account registered")
	return acct, nil
}

// Login checks credentials and opens a new session. Earlier sessions of the
// same account stay valid.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	acct, err := s.accounts.ByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !s.hasher.Matches(acct.PasswordHash, password) {
		return LoginResult{}, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, acct.ID, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}

	raw, err := s.codec.Issue(token.Claims{
		AccountID: acct.ID,
		Username:  acct.Username,
		Role:      acct.Role,
		FullName:  acct.FullName,
		SessionID: sess.ID,
	}, s.ttl)
	if err != nil {
		if rerr := s.sessions.Revoke(ctx, sess.ID); rerr != nil {
			s.log.Warn().Err(rerr).Str("session_id", sess.ID).Msg("revoke orphaned session")
		}
		return LoginResult{}, err
	}

	now := s.now().UTC()
	if err := s.accounts.TouchLastLogin(ctx, acct.ID, now); err != nil {
		s.log.Warn().Err(err).Int64("account_id", acct.ID).Msg("update last login")
	} else {
		acct.LastLoginAt = &now
	}

	s.log.Info().Int64("account_id", acct.ID).Str("session_id", sess.ID).Msg("login")
	return LoginResult{Account: acct, Token: raw, Session: sess}, nil
}

// Logout revokes the session behind raw when raw verifies. Unverifiable
// tokens are ignored.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.log.Info().Int64("account_id", claims.AccountID).Str("session_id", claims.SessionID).Msg("logout")
	return nil
}

// Authenticate verifies raw and confirms that its session is still live.
func (s *Service) Authenticate(ctx context.Context, raw string) (token.Claims, error) {
	if raw == "" {
		return token.Claims{}, ErrUnauthenticated
	}
	claims, err := s.codec.Verify(raw)
	if err != nil {
		return token.Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	live, err := s.sessions.IsLive(ctx, claims.SessionID, claims.AccountID)
	if err != nil {
		return token.Claims{}, fmt.Errorf("authenticate: %w", err)
	}
	if !live {
		return token.Claims{}, ErrSessionExpired
	}
	return claims, nil
}

// Account returns the account with the given id.
func (s *Service) Account(ctx context.Context, id int64) (Account, error) {
	return s.accounts.ByID(ctx, id)
}
