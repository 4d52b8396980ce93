package echoweb

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/session"
	"github.com/trezcool/learnlog/services/apiclient"
)

var (
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpBadRequest = echo.NewHTTPError(http.StatusBadRequest, "bad request")
)

type errorView struct {
	Code    int
	Message string
	Fields  map[string]string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(deps Deps, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		if ctx.Response().Committed {
			return
		}

		// the backend no longer accepts the token: behave as if logged out
		if apiclient.IsUnauthorized(err) {
			sess := deps.Store.Get(ctx)
			if cErr := deps.Store.Clear(ctx); cErr != nil {
				deps.Logger.Error("clearing session", cErr, sess)
			}
			if rErr := redirect(ctx, session.LoginPath); rErr != nil {
				ctx.Echo().Logger.Error(rErr)
			}
			return
		}
		if apiclient.IsCanceled(err) {
			return
		}

		view := errorView{}
		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			view.Code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				view.Message = msg
			} else {
				view.Message = http.StatusText(origErr.Code)
			}
		case validator.ValidationErrors, *core.ValidationError:
			view.Code = http.StatusBadRequest
			view.Message = "invalid input"
			view.Fields = core.FieldErrors(origErr, deps.Translator)
		default: // any other error is a server error
			view.Code = http.StatusInternalServerError
			view.Message = http.StatusText(http.StatusInternalServerError)
			deps.Logger.Error(view.Message, errors.Wrap(err, view.Message), deps.Store.Get(ctx), map[string]interface{}{
				"method": ctx.Request().Method,
				"path":   ctx.Request().URL.Path,
			})

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && view.Code == http.StatusInternalServerError {
			view.Message = err.Error()
		}

		// Send response
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(view.Code)
		} else {
			err = ctx.Render(view.Code, "error", page{
				Title:     http.StatusText(view.Code),
				AppName:   deps.Conf.AppName,
				RequestID: ctx.Response().Header().Get(echo.HeaderXRequestID),
				CSRF:      csrfToken(ctx),
				Data:      view,
			})
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
