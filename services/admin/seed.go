// Package admin implements the maintenance tasks behind rollcallctl.
package admin

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"rollcall/services/auth"
)

type accountUpserter interface {
	Upsert(ctx context.Context, a auth.Account) (auth.Account, error)
}

// AdminInput describes the administrator account to create or reset.
type AdminInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// SeedResult reports the stored account and the password it was given.
// Generated is true when the password was generated rather than supplied.
type SeedResult struct {
	Account   auth.Account
	Password  string
	Generated bool
}

// SeedAdmin creates the administrator account, or resets its password, name
// and role when the username already exists.
func SeedAdmin(ctx context.Context, accounts accountUpserter, hasher auth.Hasher, in AdminInput) (SeedResult, error) {
	if accounts == nil {
		return SeedResult{}, errors.New("account store is required")
	}
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" {
		return SeedResult{}, errors.New("username and email are required")
	}
	if in.FullName == "" {
		in.FullName = "System Administrator"
	}

	res := SeedResult{Password: in.Password}
	if res.Password == "" {
		generated, err := generatePassword()
		if err != nil {
			return SeedResult{}, err
		}
		res.Password = generated
		res.Generated = true
	}

	hash, err := hasher.Hash(res.Password)
	if err != nil {
		return SeedResult{}, err
	}

	acct, err := accounts.Upsert(ctx, auth.Account{
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		Role:         auth.RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("store admin: %w", err)
	}
	res.Account = acct
	return res, nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
