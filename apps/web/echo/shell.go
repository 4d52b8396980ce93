package echoweb

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core/session"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
)

const (
	ctxSessionKey = "session"
	ctxMountKey   = "mount"

	defaultMenuKey = "dashboard"
)

type (
	// screen is one entry of a role's menu and the routes behind it.
	screen struct {
		key      string
		label    string
		register func(s *server, g *echo.Group, r route)
	}

	// shell is the chrome of one role's portal: its menu and its screens.
	shell struct {
		role    session.Role
		screens []screen
	}

	// route locates a screen: path is relative to the shell's group, base is the absolute url.
	route struct {
		path string
		base string
	}

	shellView struct {
		Role        string
		RoleTitle   string
		DisplayName string
		Menu        []menuItem
		Selected    string
	}

	menuItem struct {
		Key    string
		Label  string
		Href   string
		Active bool
	}
)

// newShell returns the shell of a role. Every role has exactly one.
func newShell(role session.Role) *shell {
	switch role {
	case session.RoleStudent:
		return &shell{role: role, screens: studentScreens()}
	case session.RoleTeacher:
		return &shell{role: role, screens: teacherScreens()}
	case session.RoleAdmin:
		return &shell{role: role, screens: adminScreens()}
	default:
		panic("no shell for role " + role.String())
	}
}

func (sh *shell) keys() []string {
	keys := make([]string, 0, len(sh.screens))
	for _, sc := range sh.screens {
		keys = append(keys, sc.key)
	}
	return keys
}

// register mounts the shell under /<role>: gate first, then the identity re-check, then the screens.
func (sh *shell) register(s *server) {
	root := sh.role.Root()
	g := s.app.Group(root, s.gate(sh.role), s.mountShell(sh))

	g.GET("", func(ctx echo.Context) error {
		return redirect(ctx, sh.role.HomePath())
	})
	for _, sc := range sh.screens {
		sc.register(s, g, route{path: "/" + sc.key, base: root + "/" + sc.key})
	}
	// unknown sub-paths: chrome only
	g.Any("/*", func(ctx echo.Context) error {
		return s.render(ctx, http.StatusNotFound, "empty", "Not found", nil)
	})
}

// selectedMenuKey maps a request path to the menu entry it belongs to.
func selectedMenuKey(path string, role session.Role, keys []string) string {
	rest := strings.TrimPrefix(path, role.Root())
	if rest == path {
		return defaultMenuKey
	}
	segment := strings.SplitN(strings.TrimPrefix(rest, "/"), "/", 2)[0]
	for _, key := range keys {
		if key == segment {
			return key
		}
	}
	return defaultMenuKey
}

// Mount lifecycle

type mountState int

const (
	stateMounting mountState = iota
	stateVerifyingIdentity
	stateReady
	stateRedirectingToLogin
)

func (st mountState) String() string {
	switch st {
	case stateMounting:
		return "mounting"
	case stateVerifyingIdentity:
		return "verifying_identity"
	case stateReady:
		return "ready"
	case stateRedirectingToLogin:
		return "redirecting_to_login"
	default:
		return "unknown"
	}
}

var errIdentityMismatch = errors.New("backend reports a different role")

// mount is one render of a shell. It is Ready only once the backend confirmed the session's identity.
type mount struct {
	shell *shell
	sess  session.Session
	info  user.Info
	state mountState
}

func newMount(sh *shell, sess session.Session) *mount {
	return &mount{shell: sh, sess: sess, state: stateMounting}
}

func (m *mount) advance(to mountState) {
	ok := false
	switch m.state {
	case stateMounting:
		ok = to == stateVerifyingIdentity
	case stateVerifyingIdentity:
		ok = to == stateReady || to == stateRedirectingToLogin
	}
	if !ok {
		panic("invalid mount transition " + m.state.String() + " -> " + to.String())
	}
	m.state = to
}

// verify asks the backend who the stored token belongs to.
func (m *mount) verify(ctx context.Context, backend *apiclient.Client) error {
	m.advance(stateVerifyingIdentity)
	info, err := backend.WithToken(m.sess.Token).UserInfo(ctx)
	if err == nil && info.ParsedRole() != m.shell.role {
		err = errors.Wrapf(errIdentityMismatch, "shell %s, backend %q", m.shell.role, info.Role)
	}
	if err != nil {
		m.advance(stateRedirectingToLogin)
		return err
	}
	m.info = info
	m.advance(stateReady)
	return nil
}

func (m *mount) view(path string) *shellView {
	keys := m.shell.keys()
	selected := selectedMenuKey(path, m.shell.role, keys)
	v := &shellView{
		Role:        m.shell.role.String(),
		RoleTitle:   m.shell.role.Title(),
		DisplayName: m.sess.DisplayName,
		Selected:    selected,
		Menu:        make([]menuItem, 0, len(m.shell.screens)),
	}
	for _, sc := range m.shell.screens {
		v.Menu = append(v.Menu, menuItem{
			Key:    sc.key,
			Label:  sc.label,
			Href:   m.shell.role.Root() + "/" + sc.key,
			Active: sc.key == selected,
		})
	}
	return v
}

func currentMount(ctx echo.Context) *mount {
	m, _ := ctx.Get(ctxMountKey).(*mount)
	return m
}

func currentSession(ctx echo.Context) session.Session {
	sess, _ := ctx.Get(ctxSessionKey).(session.Session)
	return sess
}

// mountShell re-verifies the session against the backend on every render of the shell.
// A failed check or a role mismatch clears the session and sends the browser to login.
func (s *server) mountShell(sh *shell) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m := newMount(sh, currentSession(ctx))
			if err := m.verify(ctx.Request().Context(), s.deps.Backend); err != nil {
				if apiclient.IsCanceled(err) {
					return nil // browser went away
				}
				s.metrics.identityCheck(sh.role, "rejected")
				s.deps.Logger.Info("identity check failed", err, m.sess)
				if cErr := s.deps.Store.Clear(ctx); cErr != nil {
					s.deps.Logger.Error("clearing session", cErr, m.sess)
				}
				return redirect(ctx, session.LoginPath)
			}
			s.metrics.identityCheck(sh.role, "confirmed")
			ctx.Set(ctxMountKey, m)
			return next(ctx)
		}
	}
}

// client is the backend client bound to the mounted session's token.
func (s *server) client(ctx echo.Context) *apiclient.Client {
	return s.deps.Backend.WithToken(currentSession(ctx).Token)
}
