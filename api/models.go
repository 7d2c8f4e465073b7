package api

import "time"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /auth/refresh and /auth/logout. The
// refresh token may instead come from the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse describes the authenticated operator.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// CashboxRef points at the open cashbox.
type CashboxRef struct {
	ID            string    `json:"id"`
	OpenedAt      time.Time `json:"opened_at"`
	OpeningAmount float64   `json:"opening_amount"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *UserResponse `json:"user,omitempty"`
	Cashbox      *CashboxRef   `json:"cashbox,omitempty"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	User    UserResponse `json:"user"`
	Cashbox *CashboxRef  `json:"cashbox,omitempty"`
}
