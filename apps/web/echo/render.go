package echoweb

import (
	"embed"
	"encoding/base64"
	"encoding/json"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

//go:embed templates
var templateFS embed.FS

const flashCookie = "learnlog_flash"

type (
	// page is what every template receives.
	page struct {
		Title     string
		AppName   string
		Shell     *shellView
		Flash     *flash
		Notice    string
		RequestID string
		// CSRF is the token every form posts back as _csrf.
		CSRF string
		Data interface{}
	}

	flash struct {
		Kind    string `json:"k"` // success | error
		Message string `json:"m"`
	}

	renderer struct {
		pages map[string]*template.Template
	}
)

var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"title": titleCase,
}

// titleCase turns a backend enum value ("in_progress") into a label ("In progress").
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ReplaceAll(s[1:], "_", " ")
}

func newRenderer() *renderer {
	base := template.Must(template.New("layout").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html"))
	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		panic(err)
	}
	r := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, file := range files {
		name := strings.TrimSuffix(path.Base(file), ".html")
		r.pages[name] = template.Must(template.Must(base.Clone()).ParseFS(templateFS, file))
	}
	return r
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

// render renders a page, wrapped in the role shell when the request was mounted in one.
func (s *server) render(ctx echo.Context, code int, name, title string, data interface{}, notice ...string) error {
	p := page{
		Title:     title,
		AppName:   s.deps.Conf.AppName,
		Flash:     popFlash(ctx),
		RequestID: ctx.Response().Header().Get(echo.HeaderXRequestID),
		CSRF:      csrfToken(ctx),
		Data:      data,
	}
	if m := currentMount(ctx); m != nil && m.state == stateReady {
		p.Shell = m.view(ctx.Request().URL.Path)
	}
	if len(notice) > 0 {
		p.Notice = notice[0]
	}
	return ctx.Render(code, name, p)
}

func csrfToken(ctx echo.Context) string {
	token, _ := ctx.Get(csrfContextKey).(string)
	return token
}

// redirect answers a mutation with 303 so the browser re-fetches with GET.
func redirect(ctx echo.Context, location string) error {
	return ctx.Redirect(http.StatusSeeOther, location)
}

func setFlash(ctx echo.Context, kind, msg string) {
	raw, _ := json.Marshal(flash{Kind: kind, Message: msg})
	ctx.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func flashSuccess(ctx echo.Context, msg string) { setFlash(ctx, "success", msg) }

func flashError(ctx echo.Context, msg string) { setFlash(ctx, "error", msg) }

// popFlash reads the pending toast, if any, and removes it from the browser.
func popFlash(ctx echo.Context) *flash {
	cookie, err := ctx.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	ctx.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	f := new(flash)
	if err := json.Unmarshal(raw, f); err != nil || f.Message == "" {
		return nil
	}
	return f
}
