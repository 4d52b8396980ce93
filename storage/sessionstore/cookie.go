package sessionstore

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core/session"
)

var signingMethod = jwt.SigningMethodHS256

type claims struct {
	session.Session
	jwt.StandardClaims
}

// CookieStore keeps the whole Session in an HS256-signed JWT cookie.
type CookieStore struct {
	jar    cookieJar
	secret []byte
}

func NewCookieStore(secret, cookieName string, secure bool) *CookieStore {
	return &CookieStore{
		jar:    cookieJar{name: cookieName, secure: secure},
		secret: []byte(secret),
	}
}

func (s *CookieStore) Get(ctx echo.Context) session.Session {
	sess, err := s.decode(ctx)
	if err != nil {
		return session.Session{}
	}
	return sess
}

func (s *CookieStore) Set(ctx echo.Context, sess session.Session) error {
	token := jwt.NewWithClaims(signingMethod, &claims{Session: sess})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return errors.Wrap(err, "signing session cookie")
	}
	s.jar.set(ctx, signed)
	ctx.Set(s.jar.name, sess) // visible to the rest of this request
	return nil
}

func (s *CookieStore) Clear(ctx echo.Context) error {
	s.jar.expire(ctx)
	ctx.Set(s.jar.name, session.Session{})
	return nil
}

func (s *CookieStore) decode(ctx echo.Context) (session.Session, error) {
	// a Set or Clear earlier in this request wins over the incoming cookie
	if sess, ok := ctx.Get(s.jar.name).(session.Session); ok {
		return sess, nil
	}
	raw, err := s.jar.value(ctx)
	if err != nil {
		return session.Session{}, err
	}
	clms := new(claims)
	token, err := jwt.ParseWithClaims(raw, clms, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != signingMethod.Alg() {
			return nil, ErrInvalidSession
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return session.Session{}, ErrInvalidSession
	}
	return clms.Session, nil
}
