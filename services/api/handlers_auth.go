package api

import (
	"errors"
	"net/http"
	"time"

	"rollcall/services/auth"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	acct, err := a.auth.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Teacher registered successfully",
		"user":    acct,
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeValid(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.metrics.login("invalid_credentials")
		} else {
			a.metrics.login("error")
		}
		a.fail(w, r, err)
		return
	}
	a.metrics.login("success")

	http.SetCookie(w, a.sessionCookie(res.Token, a.config.TokenTTL))
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    res.Account,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(r.Context(), tokenFromRequest(r)); err != nil {
		a.log.Warn().Err(err).Msg("logout")
	}

	http.SetCookie(w, a.sessionCookie("", -1))
	respondJSON(w, http.StatusOK, map[string]any{"message": "Logout successful"})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := IdentityFrom(r.Context())
	if !ok {
		respondUnauthenticated(w)
		return
	}

	acct, err := a.auth.Account(r.Context(), claims.AccountID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": acct})
}

// sessionCookie builds the token cookie. A negative ttl expires it.
func (a *API) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     tokenCookie,
		Value:    value,
		Path:     "/",
		Domain:   a.config.CookieDomain,
		HttpOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		return c
	}
	c.MaxAge = int(ttl.Seconds())
	c.Expires = a.now().Add(ttl)
	return c
}
