package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rollcall/pkg/db"
)

// Roles understood by the role gate.
const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Account is a teacher login. PasswordHash never leaves the service layer.
type Account struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FullName     string     `json:"full_name"`
	Role         string     `json:"role"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	PasswordHash string     `json:"-"`
}

type accountModel struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	Username     string     `gorm:"type:text;uniqueIndex;not null"`
	Email        string     `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash string     `gorm:"type:text;not null"`
	FullName     string     `gorm:"type:text;not null"`
	Role         string     `gorm:"type:text;not null"`
	LastLogin    *time.Time `gorm:"type:timestamptz"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;autoCreateTime"`
}

func (accountModel) TableName() string { return "teachers" }

func (m accountModel) toAccount() Account {
	return Account{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		FullName:     m.FullName,
		Role:         m.Role,
		LastLoginAt:  m.LastLogin,
		PasswordHash: m.PasswordHash,
	}
}

func accountToModel(a Account) accountModel {
	return accountModel{
		ID:           a.ID,
		Username:     strings.TrimSpace(a.Username),
		Email:        strings.ToLower(strings.TrimSpace(a.Email)),
		PasswordHash: a.PasswordHash,
		FullName:     strings.TrimSpace(a.FullName),
		Role:         a.Role,
		LastLogin:    a.LastLoginAt,
	}
}

// AccountStore persists teacher accounts through GORM.
type AccountStore struct {
	orm *gorm.DB
}

// NewAccountStore returns an AccountStore backed by orm.
func NewAccountStore(orm *gorm.DB) (*AccountStore, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &AccountStore{orm: orm}, nil
}

// Create inserts a new account. Username and email collisions return ErrDuplicateAccount.
func (s *AccountStore) Create(ctx context.Context, a Account) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	model := accountToModel(a)
	model.ID = 0
	if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrDuplicateAccount
		}
		return Account{}, fmt.Errorf("create account: %w", err)
	}
	return model.toAccount(), nil
}

// Upsert creates the account or overwrites the mutable fields of the account
// with the same username.
func (s *AccountStore) Upsert(ctx context.Context, a Account) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	model := accountToModel(a)
	model.ID = 0
	err := s.orm.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "username"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "full_name", "role"}),
		}).
		Create(&model).Error
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, ErrDuplicateAccount
		}
		return Account{}, fmt.Errorf("upsert account: %w", err)
	}
	return s.ByUsername(ctx, model.Username)
}

// ByUsername loads the account with the given username.
func (s *AccountStore) ByUsername(ctx context.Context, username string) (Account, error) {
	return s.first(ctx, "username = ?", strings.TrimSpace(username))
}

// ByID loads the account with the given id.
func (s *AccountStore) ByID(ctx context.Context, id int64) (Account, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *AccountStore) first(ctx context.Context, query string, arg any) (Account, error) {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	var model accountModel
	if err := s.orm.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("load account: %w", err)
	}
	return model.toAccount(), nil
}

// TouchLastLogin records a successful login time.
func (s *AccountStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	res := s.orm.WithContext(ctx).Model(&accountModel{}).Where("id = ?", id).Update("last_login", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("update last login: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
