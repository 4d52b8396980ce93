package session

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const LoginPath = "/login"

// Session is the authentication state held for the current browser.
// Role is kept raw: the store never interprets it, Evaluate does.
type Session struct {
	Token       string `json:"token,omitempty"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"name,omitempty"`
}

func (s Session) HasToken() bool {
	return strings.TrimSpace(s.Token) != ""
}

func (s Session) ParsedRole() Role {
	return ParseRole(s.Role)
}

func (s Session) IsZero() bool {
	return s == Session{}
}

// Store keeps one Session per browser.
// Get never fails: a missing, expired or unreadable session reads as the zero Session.
// Clear must be idempotent.
type Store interface {
	Get(ctx echo.Context) Session
	Set(ctx echo.Context, sess Session) error
	Clear(ctx echo.Context) error
}
