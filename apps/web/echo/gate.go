package echoweb

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/learnlog/core/session"
)

// gate evaluates the stored session against the role a subtree requires, on every request.
func (s *server) gate(required session.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess := s.deps.Store.Get(ctx)
			decision := session.Evaluate(sess, required)
			s.metrics.gateDecision(required, decision)
			if decision.Kind != session.Allow {
				return redirect(ctx, decision.Location())
			}
			ctx.Set(ctxSessionKey, sess)
			return next(ctx)
		}
	}
}
