package sessionstore

import (
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/learnlog/core/session"
)

// MemoryStore keeps sessions in process memory, keyed by a random cookie id.
// Sessions do not survive a restart.
type MemoryStore struct {
	jar   cookieJar
	mutex sync.RWMutex
	table map[string]session.Session
}

func NewMemoryStore(cookieName string, secure bool) *MemoryStore {
	return &MemoryStore{
		jar:   cookieJar{name: cookieName, secure: secure},
		table: make(map[string]session.Session),
	}
}

func (s *MemoryStore) Get(ctx echo.Context) session.Session {
	id, ok := requestSessionID(ctx, s.jar)
	if !ok {
		return session.Session{}
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.table[id]
}

func (s *MemoryStore) Set(ctx echo.Context, sess session.Session) error {
	id := uuid.NewString()
	s.mutex.Lock()
	if old, ok := requestSessionID(ctx, s.jar); ok {
		delete(s.table, old)
	}
	s.table[id] = sess
	s.mutex.Unlock()

	s.jar.set(ctx, id)
	ctx.Set(s.jar.name, id)
	return nil
}

func (s *MemoryStore) Clear(ctx echo.Context) error {
	id, ok := requestSessionID(ctx, s.jar)
	s.jar.expire(ctx)
	ctx.Set(s.jar.name, "")
	if ok {
		s.mutex.Lock()
		delete(s.table, id)
		s.mutex.Unlock()
	}
	return nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.table)
}

// requestSessionID returns the session id for this request: the one set during the request if any, else the cookie's.
func requestSessionID(ctx echo.Context, jar cookieJar) (string, bool) {
	if id, ok := ctx.Get(jar.name).(string); ok {
		return id, id != ""
	}
	id, err := jar.value(ctx)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}
