package sessionstore

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/session"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in redis as JSON under session:<id>; the cookie only carries the id.
// Keys have no TTL: a session lives until it is cleared.
type RedisStore struct {
	jar    cookieJar
	client *redis.Client
	logger core.Logger
}

func NewRedisStore(client *redis.Client, logger core.Logger, cookieName string, secure bool) *RedisStore {
	return &RedisStore{
		jar:    cookieJar{name: cookieName, secure: secure},
		client: client,
		logger: logger,
	}
}

func redisKey(id string) string { return redisKeyPrefix + id }

// storeError wraps a failed redis call. A closed client never comes back, so it asks for a shutdown.
func storeError(err error, msg string) error {
	if errors.Is(err, redis.ErrClosed) {
		return core.NewShutdownError("session store closed", errors.Wrap(err, msg))
	}
	return errors.Wrap(err, msg)
}

func (s *RedisStore) Get(ctx echo.Context) session.Session {
	id, ok := requestSessionID(ctx, s.jar)
	if !ok {
		return session.Session{}
	}
	raw, err := s.client.Get(ctx.Request().Context(), redisKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Error("reading session", storeError(err, "redis get"))
		}
		return session.Session{}
	}
	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.logger.Warn("decoding session", errors.Wrap(err, "redis get"))
		return session.Session{}
	}
	return sess
}

func (s *RedisStore) Set(ctx echo.Context, sess session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	rctx := ctx.Request().Context()
	id := uuid.NewString()
	if err := s.client.Set(rctx, redisKey(id), raw, 0).Err(); err != nil {
		return storeError(err, "storing session")
	}
	if old, ok := requestSessionID(ctx, s.jar); ok {
		if err := s.client.Del(rctx, redisKey(old)).Err(); err != nil {
			s.logger.Warn("dropping replaced session", storeError(err, "redis del"), sess)
		}
	}
	s.jar.set(ctx, id)
	ctx.Set(s.jar.name, id)
	return nil
}

func (s *RedisStore) Clear(ctx echo.Context) error {
	id, ok := requestSessionID(ctx, s.jar)
	s.jar.expire(ctx)
	ctx.Set(s.jar.name, "")
	if !ok {
		return nil
	}
	if err := s.client.Del(ctx.Request().Context(), redisKey(id)).Err(); err != nil {
		return storeError(err, "deleting session")
	}
	return nil
}
