// Package sessionstore provides the session.Store backends.
package sessionstore

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/session"
)

var ErrInvalidSession = errors.New("session cookie was invalid")

// New builds the Store selected by conf.Session.Backend.
// The returned close func releases the backend's resources.
func New(conf *core.Config, logger core.Logger) (session.Store, func() error, error) {
	noop := func() error { return nil }
	switch conf.Session.Backend {
	case core.SessionBackendCookie, "":
		return NewCookieStore(conf.SecretKey, conf.Session.CookieName, conf.Session.CookieSecure), noop, nil
	case core.SessionBackendMemory:
		return NewMemoryStore(conf.Session.CookieName, conf.Session.CookieSecure), noop, nil
	case core.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     conf.Session.RedisAddr,
			Password: conf.Session.RedisPassword,
			DB:       conf.Session.RedisDB,
		})
		return NewRedisStore(client, logger, conf.Session.CookieName, conf.Session.CookieSecure), client.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown session backend %q", conf.Session.Backend)
	}
}

// cookieJar holds the settings shared by every backend's browser cookie.
type cookieJar struct {
	name   string
	secure bool
}

// set writes a browser-session cookie (no Expires: it survives reloads but not the browser session).
func (j cookieJar) set(ctx echo.Context, value string) {
	ctx.SetCookie(&http.Cookie{
		Name:     j.name,
		Value:    value,
		Path:     "/",
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j cookieJar) expire(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     j.name,
		Value:    "",
		Path:     "/",
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func (j cookieJar) value(ctx echo.Context) (string, error) {
	cookie, err := ctx.Cookie(j.name)
	if err != nil || cookie.Value == "" {
		return "", ErrInvalidSession
	}
	return cookie.Value, nil
}
