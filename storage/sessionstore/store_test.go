package sessionstore

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/session"
	logsvc "github.com/trezcool/learnlog/services/logger"
)

const cookieName = "test_session"

var sess = session.Session{Token: "tok-123", Role: "teacher", DisplayName: "Ms Frizzle"}

// browser carries cookies between requests like a real user agent would.
type browser struct {
	app     *echo.Echo
	cookies map[string]*http.Cookie
}

func newBrowser() *browser {
	return &browser{app: echo.New(), cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(fn func(ctx echo.Context)) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	fn(b.app.NewContext(req, rec))
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
}

func newLogger(buf *bytes.Buffer) *logsvc.RollbarLogger {
	lgr := logsvc.NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST"})
	lgr.Enable(false)
	return lgr
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, newLogger(new(bytes.Buffer)), cookieName, false), mr, client
}

func allStores(t *testing.T) map[string]session.Store {
	rs, _, _ := newRedisStore(t)
	return map[string]session.Store{
		"cookie": NewCookieStore("s3cr3t", cookieName, false),
		"memory": NewMemoryStore(cookieName, false),
		"redis":  rs,
	}
}

func TestStores_SetGetClear(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			b := newBrowser()

			b.do(func(ctx echo.Context) {
				assert.Equal(t, session.Session{}, store.Get(ctx), "fresh browser has no session")
				require.NoError(t, store.Set(ctx, sess))
				assert.Equal(t, sess, store.Get(ctx), "visible within the same request")
			})
			require.Contains(t, b.cookies, cookieName)
			assert.True(t, b.cookies[cookieName].HttpOnly)
			assert.True(t, b.cookies[cookieName].Expires.IsZero(), "browser-session cookie")

			// survives a reload
			b.do(func(ctx echo.Context) {
				assert.Equal(t, sess, store.Get(ctx))
			})

			b.do(func(ctx echo.Context) {
				require.NoError(t, store.Clear(ctx))
				assert.Equal(t, session.Session{}, store.Get(ctx))
			})
			assert.NotContains(t, b.cookies, cookieName)

			b.do(func(ctx echo.Context) {
				assert.Equal(t, session.Session{}, store.Get(ctx))
			})
		})
	}
}

func TestStores_ClearIdempotent(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			b := newBrowser()
			b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })

			var once, twice session.Session
			b.do(func(ctx echo.Context) {
				require.NoError(t, store.Clear(ctx))
				once = store.Get(ctx)
			})
			b.do(func(ctx echo.Context) {
				require.NoError(t, store.Clear(ctx))
				twice = store.Get(ctx)
			})
			assert.Equal(t, once, twice)
			assert.False(t, twice.HasToken())

			// clearing a browser that never had a session is fine too
			newBrowser().do(func(ctx echo.Context) { assert.NoError(t, store.Clear(ctx)) })
		})
	}
}

func TestStores_SetOverwrites(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			b := newBrowser()
			b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })
			other := session.Session{Token: "tok-999", Role: "whatever"}
			b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, other)) })
			b.do(func(ctx echo.Context) {
				// the store does not interpret the role
				assert.Equal(t, other, store.Get(ctx))
			})
		})
	}
}

func TestCookieStore_Tampered(t *testing.T) {
	store := NewCookieStore("s3cr3t", cookieName, false)
	forger := NewCookieStore("not-the-secret", cookieName, false)

	b := newBrowser()
	b.do(func(ctx echo.Context) {
		require.NoError(t, forger.Set(ctx, session.Session{Token: "x", Role: "admin"}))
	})
	b.do(func(ctx echo.Context) {
		assert.Equal(t, session.Session{}, store.Get(ctx))
	})

	b.cookies[cookieName] = &http.Cookie{Name: cookieName, Value: "garbage"}
	b.do(func(ctx echo.Context) {
		assert.Equal(t, session.Session{}, store.Get(ctx))
	})
}

func TestMemoryStore_DropsOldSessions(t *testing.T) {
	store := NewMemoryStore(cookieName, false)
	b := newBrowser()
	b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })
	b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })
	assert.Equal(t, 1, store.Len())
	b.do(func(ctx echo.Context) { require.NoError(t, store.Clear(ctx)) })
	assert.Equal(t, 0, store.Len())
}

func TestRedisStore_Keys(t *testing.T) {
	store, mr, _ := newRedisStore(t)
	b := newBrowser()
	b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })

	id := b.cookies[cookieName].Value
	assert.True(t, mr.Exists(redisKeyPrefix+id))
	assert.Equal(t, 0, int(mr.TTL(redisKeyPrefix+id)), "no expiry")

	b.do(func(ctx echo.Context) { require.NoError(t, store.Clear(ctx)) })
	assert.False(t, mr.Exists(redisKeyPrefix+id))
}

func TestRedisStore_Unreachable(t *testing.T) {
	logs := new(bytes.Buffer)
	store, mr, _ := newRedisStore(t)
	store.logger = newLogger(logs)

	b := newBrowser()
	b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })
	mr.SetError("LOADING redis is loading")
	b.do(func(ctx echo.Context) {
		assert.Equal(t, session.Session{}, store.Get(ctx))
	})
	assert.Contains(t, logs.String(), "reading session")

	// a failing server is not a reason to stop
	b.do(func(ctx echo.Context) {
		err := store.Set(ctx, sess)
		require.Error(t, err)
		assert.False(t, core.IsShutdown(err))
	})
}

func TestRedisStore_ClosedClientAsksForShutdown(t *testing.T) {
	store, _, client := newRedisStore(t)
	b := newBrowser()
	b.do(func(ctx echo.Context) { require.NoError(t, store.Set(ctx, sess)) })
	require.NoError(t, client.Close())

	b.do(func(ctx echo.Context) {
		err := store.Set(ctx, sess)
		require.Error(t, err)
		assert.True(t, core.IsShutdown(err), err)
	})
	b.do(func(ctx echo.Context) {
		assert.True(t, core.IsShutdown(store.Clear(ctx)))
	})
}

func TestNew(t *testing.T) {
	conf := &core.Config{SecretKey: "k"}
	conf.Session.CookieName = cookieName

	for _, backend := range []string{core.SessionBackendCookie, core.SessionBackendMemory, core.SessionBackendRedis} {
		conf.Session.Backend = backend
		store, closeFn, err := New(conf, newLogger(new(bytes.Buffer)))
		require.NoError(t, err, backend)
		assert.NotNil(t, store)
		assert.NoError(t, closeFn())
	}

	conf.Session.Backend = "sqlite"
	_, _, err := New(conf, newLogger(new(bytes.Buffer)))
	assert.Error(t, err)
}
