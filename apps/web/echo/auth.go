package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/session"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
)

const msgInvalidCredentials = "invalid username or password"

type authView struct {
	Values map[string]string
	Errors map[string]string
	Roles  []option
}

func (s *server) registerAuth() {
	s.app.GET(session.LoginPath, s.handleLoginPage)
	s.app.POST(session.LoginPath, s.handleLogin)
	s.app.GET("/register", s.handleRegisterPage)
	s.app.POST("/register", s.handleRegister)
	s.app.Match([]string{http.MethodGet, http.MethodPost}, "/logout", s.handleLogout)
}

// handleLoginPage sends a signed in user to their own dashboard.
func (s *server) handleLoginPage(ctx echo.Context) error {
	decision := session.Evaluate(s.deps.Store.Get(ctx), session.RoleUnknown)
	if decision.Kind == session.RedirectToRoleHome {
		return redirect(ctx, decision.Location())
	}
	return s.render(ctx, http.StatusOK, "login", "Sign in", authView{})
}

// handleLogin exchanges the credentials for a token, then asks the backend who it belongs to.
// The session is only stored once token, role and display name are all known.
func (s *server) handleLogin(ctx echo.Context) error {
	var form user.LoginForm
	if err := ctx.Bind(&form); err != nil {
		return errHttpBadRequest
	}
	values := map[string]string{"username": form.Username}

	if err := form.Validate(s.deps.Validate); err != nil {
		flds := core.FieldErrors(err, s.deps.Translator)
		if flds == nil {
			return errors.Wrap(err, "validating login")
		}
		return s.render(ctx, http.StatusBadRequest, "login", "Sign in", authView{Values: values, Errors: flds})
	}

	reqCtx := ctx.Request().Context()
	result, err := s.deps.Backend.Login(reqCtx, form.Username, form.Password)
	if err != nil {
		return s.loginFailed(ctx, values, err)
	}
	info, err := s.deps.Backend.WithToken(result.Token).UserInfo(reqCtx)
	if err != nil {
		return s.loginFailed(ctx, values, err)
	}

	if !info.ParsedRole().Valid() {
		s.deps.Logger.Warn("login with an unknown role", info.Username, info.Role)
		return s.render(ctx, http.StatusForbidden, "login", "Sign in", authView{Values: values},
			"this account has no portal, contact an administrator")
	}
	sess, err := info.Session(result.Token)
	if err != nil {
		s.deps.Logger.Warn("login with an incomplete identity", err, map[string]interface{}{"username": form.Username})
		return s.render(ctx, http.StatusBadGateway, "login", "Sign in", authView{Values: values},
			"the backend could not identify this account, try again later")
	}
	if err := s.deps.Store.Set(ctx, sess); err != nil {
		return errors.Wrap(err, "storing session")
	}
	flashSuccess(ctx, "welcome, "+sess.DisplayName)
	return redirect(ctx, info.ParsedRole().HomePath())
}

func (s *server) loginFailed(ctx echo.Context, values map[string]string, err error) error {
	if apiclient.IsCanceled(err) {
		return err
	}
	if apiclient.IsUnauthorized(err) {
		return s.render(ctx, http.StatusUnauthorized, "login", "Sign in", authView{Values: values}, msgInvalidCredentials)
	}
	msg, _ := s.backendError(ctx, err)
	return s.render(ctx, http.StatusBadGateway, "login", "Sign in", authView{Values: values}, msg)
}

func registerRoles() []option {
	return options(session.RoleStudent.String(), session.RoleTeacher.String())
}

func (s *server) handleRegisterPage(ctx echo.Context) error {
	return s.render(ctx, http.StatusOK, "register", "Sign up", authView{Roles: registerRoles()})
}

func (s *server) handleRegister(ctx echo.Context) error {
	var form user.RegisterForm
	if err := ctx.Bind(&form); err != nil {
		return errHttpBadRequest
	}

	view := func(errs map[string]string) authView {
		roles := registerRoles()
		for i := range roles {
			roles[i].Selected = roles[i].Value == form.Role
		}
		return authView{
			Values: map[string]string{"username": form.Username, "role": form.Role, "avatar": form.Avatar},
			Errors: errs,
			Roles:  roles,
		}
	}

	if err := form.Validate(s.deps.Validate); err != nil {
		flds := core.FieldErrors(err, s.deps.Translator)
		if flds == nil {
			return errors.Wrap(err, "validating registration")
		}
		return s.render(ctx, http.StatusBadRequest, "register", "Sign up", view(flds))
	}

	if err := s.deps.Backend.Register(ctx.Request().Context(), form); err != nil {
		if apiclient.IsCanceled(err) {
			return err
		}
		msg, _ := s.backendError(ctx, err)
		return s.render(ctx, http.StatusBadGateway, "register", "Sign up", view(nil), msg)
	}
	flashSuccess(ctx, "account created, you can now sign in")
	return redirect(ctx, session.LoginPath)
}

// handleLogout drops the session before answering with the redirect to login.
func (s *server) handleLogout(ctx echo.Context) error {
	sess := s.deps.Store.Get(ctx)
	if err := s.deps.Store.Clear(ctx); err != nil {
		s.deps.Logger.Error("clearing session", err, sess)
		return errors.Wrap(err, "clearing session")
	}
	return redirect(ctx, session.LoginPath)
}
