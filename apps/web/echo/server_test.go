package echoweb

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/session"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
	logsvc "github.com/trezcool/learnlog/services/logger"
	"github.com/trezcool/learnlog/storage/sessionstore"
	testutil "github.com/trezcool/learnlog/tests"
)

const testPassword = "Sup3r-S3cret!"

type testApp struct {
	t       *testing.T
	backend *testutil.Backend
	store   *sessionstore.MemoryStore
	srv     Server
	server  *httptest.Server
	logs    *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWith(t, nil)
}

// newTestAppWith runs the app on store, or on app.store when store is nil.
func newTestAppWith(t *testing.T, store session.Store) *testApp {
	t.Helper()

	conf := &core.Config{Env: "TEST", Build: "test", TestMode: true, AppName: "LearnLog"}
	conf.Server.DisableReqLogs = true
	conf.Backend.Timeout = 5 * time.Second
	conf.Session.Backend = core.SessionBackendMemory
	conf.Session.CookieName = "test_session"

	logs := new(bytes.Buffer)
	lgr := logsvc.NewRollbarLogger(log.New(logs, "", 0), conf)
	lgr.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	learning.InitValidators(validate, translator)

	backend := testutil.NewBackend(t)
	mem := sessionstore.NewMemoryStore(conf.Session.CookieName, false)
	if store == nil {
		store = mem
	}

	srv := NewServer(Deps{
		Conf:       conf,
		Logger:     lgr,
		Store:      store,
		Backend:    apiclient.New(backend.URL, conf.Backend.Timeout),
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testApp{t: t, backend: backend, store: mem, srv: srv, server: ts, logs: logs}
}

// browser keeps cookies between requests and never follows redirects.
type browser struct {
	app    *testApp
	client *http.Client
}

func (a *testApp) browser() *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(a.t, err)
	return &browser{app: a, client: &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

type response struct {
	code     int
	location string
	body     string
}

// csrf returns the browser's csrf token, loading a page first when it has none yet.
func (b *browser) csrf() string {
	b.app.t.Helper()
	u, err := url.Parse(b.app.server.URL)
	require.NoError(b.app.t, err)
	for i := 0; i < 2; i++ {
		for _, c := range b.client.Jar.Cookies(u) {
			if c.Name == csrfCookie {
				return c.Value
			}
		}
		b.send(http.MethodGet, "/", nil)
	}
	b.app.t.Fatal("no csrf cookie")
	return ""
}

// do sends the request like a page's form would: with the csrf token, unless form already sets one.
func (b *browser) do(method, path string, form url.Values) response {
	b.app.t.Helper()
	if form != nil {
		if _, ok := form[csrfField]; !ok {
			withToken := url.Values{csrfField: {b.csrf()}}
			for k, v := range form {
				withToken[k] = v
			}
			form = withToken
		}
	}
	return b.send(method, path, form)
}

func (b *browser) send(method, path string, form url.Values) response {
	b.app.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, b.app.server.URL+path, body)
	require.NoError(b.app.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	res, err := b.client.Do(req)
	require.NoError(b.app.t, err)
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	require.NoError(b.app.t, err)
	return response{code: res.StatusCode, location: res.Header.Get("Location"), body: string(raw)}
}

func (b *browser) get(path string) response { return b.do(http.MethodGet, path, nil) }

func (b *browser) post(path string, form url.Values) response {
	if form == nil {
		form = url.Values{}
	}
	return b.do(http.MethodPost, path, form)
}

// login signs in a fresh account with the given role and returns its browser and token.
func (a *testApp) login(username, role, name string) (*browser, string) {
	a.t.Helper()
	token := a.backend.AddUser(username, testPassword, role, name)
	b := a.browser()
	res := b.post("/login", url.Values{"username": {username}, "password": {testPassword}})
	require.Equal(a.t, http.StatusSeeOther, res.code, res.body)
	require.Equal(a.t, session.ParseRole(role).HomePath(), res.location)
	return b, token
}

// seed stores sess in the browser through the store itself, bypassing login.
func (b *browser) seed(sess session.Session) {
	b.app.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(b.app.t, b.app.store.Set(echo.New().NewContext(req, rec), sess))

	u, err := url.Parse(b.app.server.URL)
	require.NoError(b.app.t, err)
	b.client.Jar.SetCookies(u, rec.Result().Cookies())
}

type httpTest struct {
	name         string
	method       string
	path         string
	form         url.Values
	wantCode     int
	wantLocation string
	wantBody     []string
}

func (b *browser) run(t *testing.T, tests []httpTest) {
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			res := b.do(method, tc.path, tc.form)
			assert.Equal(t, tc.wantCode, res.code, res.body)
			if tc.wantLocation != "" {
				assert.Equal(t, tc.wantLocation, res.location)
			}
			for _, want := range tc.wantBody {
				assert.Contains(t, res.body, want)
			}
		})
	}
}

func TestGate_Anonymous(t *testing.T) {
	app := newTestApp(t)
	app.browser().run(t, []httpTest{
		{name: "root", path: "/", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "student", path: "/student/dashboard", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "teacher", path: "/teacher/students", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "admin", path: "/admin", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "admin unknown page", path: "/admin/nope", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "login page", path: "/login", wantCode: http.StatusOK, wantBody: []string{"Sign in"}},
		{name: "register page", path: "/register", wantCode: http.StatusOK, wantBody: []string{"Sign up", `value="teacher"`}},
	})
	assert.Empty(t, app.backend.Requests(), "the gate never calls the backend")
}

func TestGate_RoleMismatchGoesHome(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("frizzle", "teacher", "Ms Frizzle")

	b.run(t, []httpTest{
		{name: "own dashboard", path: "/teacher/dashboard", wantCode: http.StatusOK, wantBody: []string{"Ms Frizzle", "Students"}},
		{name: "own root", path: "/teacher", wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
		{name: "own root slash", path: "/teacher/", wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
		{name: "admin", path: "/admin/users", wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
		{name: "student", path: "/student/goals", wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
		{name: "login", path: "/login", wantCode: http.StatusSeeOther, wantLocation: "/teacher/dashboard"},
	})
}

func TestGate_TokenAbsenceDominates(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.seed(session.Session{Role: "teacher", DisplayName: "Ghost"})

	res := b.get("/teacher/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/login", res.location)
}

func TestGate_UnknownRoleIsUnauthenticated(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.seed(session.Session{Token: "tok-x", Role: "janitor"})

	for _, path := range []string{"/student/dashboard", "/teacher/dashboard", "/admin/dashboard"} {
		res := b.get(path)
		assert.Equal(t, http.StatusSeeOther, res.code, path)
		assert.Equal(t, "/login", res.location, path)
	}
}

func TestShell_IdentityMismatchClearsSession(t *testing.T) {
	app := newTestApp(t)
	b, token := app.login("frizzle", "teacher", "Ms Frizzle")
	require.Equal(t, 1, app.store.Len())

	// the local session still says teacher, the backend no longer does
	app.backend.SetRole(token, "admin")
	res := b.get("/teacher/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/login", res.location)
	assert.Equal(t, 0, app.store.Len())

	// the next navigation is stopped by the gate alone
	app.backend.ResetRequests()
	res = b.get("/admin/dashboard")
	assert.Equal(t, "/login", res.location)
	assert.Empty(t, app.backend.Requests())
}

func TestShell_RevokedToken(t *testing.T) {
	app := newTestApp(t)
	b, token := app.login("ada", "student", "Ada")

	app.backend.RevokeToken(token)
	res := b.get("/student/goals")
	assert.Equal(t, http.StatusSeeOther, res.code)
	assert.Equal(t, "/login", res.location)
	assert.Equal(t, 0, app.store.Len())
	assert.Contains(t, app.logs.String(), "identity check failed")
}

func TestShell_ChromeAndUnknownPage(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("root", "admin", "")

	res := b.get("/admin/classes")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, `<a href="/admin/classes" class="active">Classes</a>`)
	assert.Contains(t, res.body, "root", "display name falls back to the username")
	assert.Contains(t, res.body, `action="/logout"`)

	res = b.get("/admin/does/not/exist")
	assert.Equal(t, http.StatusNotFound, res.code)
	assert.Contains(t, res.body, `<a href="/admin/dashboard" class="active">Dashboard</a>`)
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("ada", "student", "Ada")

	b.run(t, []httpTest{
		{name: "logout", method: http.MethodPost, path: "/logout", form: url.Values{}, wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "gated after logout", path: "/student/dashboard", wantCode: http.StatusSeeOther, wantLocation: "/login"},
		{name: "logout again", path: "/logout", wantCode: http.StatusSeeOther, wantLocation: "/login"},
	})
	assert.Equal(t, 0, app.store.Len())
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.backend.AddUser("ada", testPassword, "student", "Ada")
	app.backend.AddUser("nobody", testPassword, "", "")

	app.browser().run(t, []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/login",
			form:     url.Values{"username": {" "}},
			wantCode: http.StatusBadRequest,
			wantBody: []string{"this field is required"},
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/login",
			form:     url.Values{"username": {"ada"}, "password": {"nope"}},
			wantCode: http.StatusUnauthorized,
			wantBody: []string{msgInvalidCredentials, `value="ada"`},
		},
		{
			name:     "account without role",
			method:   http.MethodPost,
			path:     "/login",
			form:     url.Values{"username": {"nobody"}, "password": {testPassword}},
			wantCode: http.StatusForbidden,
			wantBody: []string{"no portal"},
		},
	})
	assert.Equal(t, 0, app.store.Len(), "no partial session is stored")

	app.backend.Fail("login", http.StatusServiceUnavailable)
	res := app.browser().post("/login", url.Values{"username": {"ada"}, "password": {testPassword}})
	assert.Equal(t, http.StatusBadGateway, res.code)
	assert.Contains(t, res.body, "login failure")
}

func TestRegister(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()

	res := b.post("/register", url.Values{
		"username":        {"newbie"},
		"password":        {"password"},
		"confirmPassword": {"password"},
		"role":            {"student"},
	})
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "password must contain at least 1 uppercase character")
	assert.NotContains(t, app.backend.Calls(), "POST /api/user/register")

	res = b.post("/register", url.Values{
		"username":        {"newbie"},
		"password":        {"Pl@nty-of-Ch4rs"},
		"confirmPassword": {"Pl@nty-of-Ch4rs"},
		"role":            {"admin"},
	})
	assert.Equal(t, http.StatusBadRequest, res.code, "admins cannot sign up")

	res = b.post("/register", url.Values{
		"username":        {"newbie"},
		"password":        {"Pl@nty-of-Ch4rs"},
		"confirmPassword": {"Pl@nty-of-Ch4rs"},
		"role":            {"teacher"},
	})
	assert.Equal(t, http.StatusSeeOther, res.code, res.body)
	assert.Equal(t, "/login", res.location)

	res = b.post("/login", url.Values{"username": {"newbie"}, "password": {"Pl@nty-of-Ch4rs"}})
	assert.Equal(t, "/teacher/dashboard", res.location)
}

func TestCrud_DeleteThenRefresh(t *testing.T) {
	app := newTestApp(t)
	ids := app.backend.Seed("goals",
		learning.Goal{Name: "learn go", Priority: 1, Status: learning.GoalInProgress},
		learning.Goal{Name: "read sicp", Priority: 2, Status: learning.GoalPending},
		learning.Goal{Name: "ship it", Priority: 3, Status: learning.GoalNotStarted},
	)
	b, _ := app.login("ada", "student", "Ada")
	app.backend.ResetRequests()

	res := b.post("/student/goals/"+itoa(ids[1]), url.Values{"_method": {http.MethodDelete}})
	require.Equal(t, http.StatusSeeOther, res.code, res.body)
	require.Equal(t, "/student/goals", res.location)

	res = b.get(res.location)
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "goal deleted")
	assert.Contains(t, res.body, "learn go")
	assert.NotContains(t, res.body, "read sicp")

	calls := app.backend.Calls()
	deleted, listed := -1, -1
	for i, call := range calls {
		switch call {
		case "DELETE /api/goals/" + itoa(ids[1]):
			deleted = i
		case "GET /api/goals":
			listed = i
		}
	}
	require.NotEqual(t, -1, deleted, calls)
	assert.Greater(t, listed, deleted, calls)
}

func TestCrud_CreateUpdate(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("ada", "student", "Ada")

	res := b.post("/student/goals", url.Values{
		"goalName": {"finish the course"},
		"dueDate":  {"2030-01-31"},
		"priority": {"2"},
	})
	require.Equal(t, http.StatusSeeOther, res.code, res.body)
	items := app.backend.Items("goals")
	require.Len(t, items, 1)
	assert.Equal(t, "finish the course", items[0]["goalName"])

	res = b.get("/student/goals")
	assert.Contains(t, res.body, "goal created")
	assert.Contains(t, res.body, "finish the course")

	id := "1"
	res = b.get("/student/goals?edit=" + id)
	assert.Contains(t, res.body, `value="finish the course"`)
	assert.Contains(t, res.body, `value="2030-01-31"`)
	assert.Contains(t, res.body, `<option value="2" selected>Medium</option>`)

	res = b.post("/student/goals/"+id, url.Values{
		"_method":  {http.MethodPut},
		"goalName": {"finish both courses"},
		"dueDate":  {"2030-02-28"},
		"priority": {"1"},
		"status":   {"in_progress"},
	})
	require.Equal(t, http.StatusSeeOther, res.code, res.body)
	assert.Equal(t, "finish both courses", app.backend.Items("goals")[0]["goalName"])
	assert.Contains(t, app.backend.Calls(), "PUT /api/goals/1")
}

func TestCrud_ValidationStaysLocal(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("ada", "student", "Ada")
	app.backend.ResetRequests()

	b.run(t, []httpTest{
		{
			name:     "goal without name",
			method:   http.MethodPost,
			path:     "/student/goals",
			form:     url.Values{"dueDate": {"2030-01-31"}, "priority": {"1"}},
			wantCode: http.StatusBadRequest,
			wantBody: []string{"please correct the errors below", "this field is required"},
		},
		{
			name:   "activity ending before it starts",
			method: http.MethodPost,
			path:   "/student/activities",
			form: url.Values{
				"activityName": {"hackathon"},
				"activityType": {"competition"},
				"startTime":    {"2024-03-02T10:00"},
				"endTime":      {"2024-03-01T10:00"},
			},
			wantCode: http.StatusBadRequest,
			wantBody: []string{"end time cannot be before start time", `value="hackathon"`},
		},
	})

	for _, call := range app.backend.Calls() {
		assert.False(t, strings.HasPrefix(call, http.MethodPost), call)
	}
}

func TestCrud_BackendFailureIsANotice(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("frizzle", "teacher", "Ms Frizzle")

	app.backend.Fail("students", http.StatusInternalServerError)
	res := b.get("/teacher/students")
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "students failure")
	assert.Contains(t, res.body, "Nothing here yet.")

	res = b.post("/teacher/students", url.Values{"username": {"kid_1"}, "name": {"Kid"}, "status": {"active"}})
	assert.Equal(t, http.StatusSeeOther, res.code)
	res = b.get(res.location)
	assert.Contains(t, res.body, `class="toast error"`)
	assert.Contains(t, app.logs.String(), "backend call failed")
}

func TestCrud_ReadOnlyScreens(t *testing.T) {
	app := newTestApp(t)
	app.backend.Seed("activities", learning.Activity{Name: "pairing", Type: "project", StudentID: 7})
	b, _ := app.login("frizzle", "teacher", "Ms Frizzle")

	res := b.get("/teacher/activities")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "pairing")
	assert.NotContains(t, res.body, "<form method=\"post\" action=\"/teacher/activities\">")

	res = b.post("/teacher/activities", url.Values{"activityName": {"x"}})
	assert.NotEqual(t, http.StatusSeeOther, res.code, "no create route on a read-only screen")
	assert.NotContains(t, app.backend.Calls(), "POST /api/activities")
}

func TestTeacherFeedback_Respond(t *testing.T) {
	app := newTestApp(t)
	ids := app.backend.Seed("feedback", learning.Feedback{Content: "too fast", StudentID: 3})
	b, _ := app.login("frizzle", "teacher", "Ms Frizzle")

	res := b.post("/teacher/feedback/"+itoa(ids[0]), url.Values{"_method": {http.MethodPut}, "response": {"I'll slow down"}})
	require.Equal(t, http.StatusSeeOther, res.code, res.body)
	assert.Contains(t, app.backend.Calls(), "POST /api/feedback/1/respond")
	assert.Equal(t, "I'll slow down", app.backend.Items("feedback")[0]["response"])
}

func TestAdminUsers_PasswordRequiredOnCreate(t *testing.T) {
	app := newTestApp(t)
	b, _ := app.login("root", "admin", "Root")

	form := url.Values{"username": {"newteacher"}, "role": {"teacher"}, "status": {"active"}}
	res := b.post("/admin/users", form)
	assert.Equal(t, http.StatusBadRequest, res.code)
	assert.Contains(t, res.body, "password is required for new users")

	form.Set("password", "An0ther-Passw0rd")
	res = b.post("/admin/users", form)
	assert.Equal(t, http.StatusSeeOther, res.code, res.body)
	require.Len(t, app.backend.Items("users"), 1)

	// updates keep the current password when left empty
	form.Del("password")
	form.Set("_method", http.MethodPut)
	form.Set("status", "inactive")
	res = b.post("/admin/users/1", form)
	assert.Equal(t, http.StatusSeeOther, res.code, res.body)
	assert.Equal(t, "inactive", app.backend.Items("users")[0]["status"])
}

func TestStudentScreens(t *testing.T) {
	app := newTestApp(t)
	app.backend.Seed("resources",
		learning.Resource{Name: "Go by Example", Type: "course", URL: "https://gobyexample.com"},
		learning.Resource{Name: "Effective Go", Type: "article"},
	)
	app.backend.Seed("goals", learning.Goal{Name: "learn go", Status: learning.GoalCompleted})
	b, _ := app.login("ada", "student", "Ada")

	b.run(t, []httpTest{
		{name: "dashboard", path: "/student/dashboard", wantCode: http.StatusOK, wantBody: []string{"Welcome back, Ada", "Overall progress"}},
		{name: "resources", path: "/student/resources", wantCode: http.StatusOK, wantBody: []string{"Go by Example", "Effective Go"}},
		{name: "search", path: "/student/resources?keyword=effective", wantCode: http.StatusOK, wantBody: []string{"Effective Go"}},
		{name: "recommendations", path: "/student/recommendations", wantCode: http.StatusOK, wantBody: []string{"popular with your classmates", "Popular resources"}},
		{name: "analytics", path: "/student/analytics", wantCode: http.StatusOK, wantBody: []string{"Goals by status", "100%"}},
		{name: "profile", path: "/student/profile", wantCode: http.StatusOK, wantBody: []string{"ada", "Student"}},
		{
			name:     "rate out of range",
			method:   http.MethodPost,
			path:     "/student/resources/1/rate",
			form:     url.Values{"rating": {"9"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:         "rate",
			method:       http.MethodPost,
			path:         "/student/resources/1/rate",
			form:         url.Values{"rating": {"5"}, "comment": {"great"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/student/resources",
		},
		{
			name:         "like a recommendation",
			method:       http.MethodPost,
			path:         "/student/recommendations/feedback",
			form:         url.Values{"resourceId": {"2"}, "feedback": {"like"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/student/recommendations",
		},
		{
			name:     "update avatar with a bad url",
			method:   http.MethodPost,
			path:     "/student/profile",
			form:     url.Values{"_method": {http.MethodPut}, "avatar": {"not a url"}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:         "update avatar",
			method:       http.MethodPost,
			path:         "/student/profile",
			form:         url.Values{"_method": {http.MethodPut}, "avatar": {"https://example.com/ada.png"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/student/profile",
		},
	})

	res := b.get("/student/resources?keyword=effective")
	results := res.body[:strings.Index(res.body, "Recently added")]
	assert.NotContains(t, results, "Go by Example")

	calls := app.backend.Calls()
	assert.Contains(t, calls, "POST /api/resources/1/feedback")
	assert.Contains(t, calls, "POST /api/recommendation/feedback")
	assert.Contains(t, calls, "PUT /api/user")
	assert.Contains(t, calls, "GET /api/progress")
}

func TestAdminSettingsAndAnalytics(t *testing.T) {
	app := newTestApp(t)
	app.backend.Seed("users", user.User{Username: "a", Role: "teacher", Status: "active"}, user.User{Username: "b", Role: "student", Status: "active"})
	b, _ := app.login("root", "admin", "Root")

	b.run(t, []httpTest{
		{name: "settings", path: "/admin/settings", wantCode: http.StatusOK, wantBody: []string{"Session backend", "memory"}},
		{name: "analytics", path: "/admin/analytics", wantCode: http.StatusOK, wantBody: []string{"Users by role", "Teacher"}},
	})
}

func TestMetrics(t *testing.T) {
	app := newTestApp(t)
	b := app.browser()
	b.get("/student/dashboard")

	res := b.get("/metrics")
	assert.NotEqual(t, http.StatusOK, res.code, "metrics are only served on the debug listener")
	assert.NotContains(t, res.body, "learnlog_gate_decisions_total")

	rec := httptest.NewRecorder()
	app.srv.Metrics().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `learnlog_gate_decisions_total{decision="redirect_login",role="student"} 1`)
}

func TestCsrf(t *testing.T) {
	app := newTestApp(t)
	app.backend.AddUser("ada", testPassword, "student", "Ada")
	creds := url.Values{"username": {"ada"}, "password": {testPassword}}

	b := app.browser()
	res := b.get("/login")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, `name="_csrf" value="`+b.csrf()+`"`)

	res = b.send(http.MethodPost, "/login", creds)
	assert.Equal(t, http.StatusBadRequest, res.code, "no token")

	forged := url.Values{csrfField: {"forged"}}
	for k, v := range creds {
		forged[k] = v
	}
	res = b.do(http.MethodPost, "/login", forged)
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, 0, app.store.Len())
	assert.NotContains(t, app.backend.Calls(), "POST /api/user/login")

	res = b.post("/login", creds)
	assert.Equal(t, http.StatusSeeOther, res.code, res.body)

	// a signed in browser still needs the token for mutations
	res = b.do(http.MethodPost, "/logout", url.Values{csrfField: {"forged"}})
	assert.Equal(t, http.StatusForbidden, res.code)
	assert.Equal(t, 1, app.store.Len())
}

func TestLogin_IncompleteIdentity(t *testing.T) {
	app := newTestApp(t)
	app.backend.AddUser("ghost", testPassword, "student", "")
	app.backend.Anonymize("ghost")

	res := app.browser().post("/login", url.Values{"username": {"ghost"}, "password": {testPassword}})
	assert.Equal(t, http.StatusBadGateway, res.code)
	assert.Contains(t, res.body, "could not identify this account")
	assert.Equal(t, 0, app.store.Len())
	assert.Contains(t, app.logs.String(), "login with an incomplete identity")
}

func TestLogin_ClosedSessionStoreShutsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Close())

	logs := new(bytes.Buffer)
	lgr := logsvc.NewRollbarLogger(log.New(logs, "", 0), &core.Config{Env: "TEST"})
	lgr.Enable(false)
	app := newTestAppWith(t, sessionstore.NewRedisStore(client, lgr, "test_session", false))
	app.backend.AddUser("ada", testPassword, "student", "Ada")

	res := app.browser().post("/login", url.Values{"username": {"ada"}, "password": {testPassword}})
	assert.Equal(t, http.StatusInternalServerError, res.code)

	select {
	case sig := <-app.srv.ShutdownSignal():
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("no shutdown requested")
	}
}

func TestTeacherGoals_StatusOnly(t *testing.T) {
	app := newTestApp(t)
	due := learning.Timestamp{Time: time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)}
	ids := app.backend.Seed("goals", learning.Goal{
		StudentID: 3,
		Name:      "learn go",
		DueDate:   due,
		Priority:  learning.PriorityHigh,
		Status:    learning.GoalPending,
	})
	b, _ := app.login("frizzle", "teacher", "Ms Frizzle")
	app.backend.ResetRequests()

	res := b.post("/teacher/goals/"+itoa(ids[0]), url.Values{"_method": {http.MethodPut}, "status": {learning.GoalCompleted}})
	require.Equal(t, http.StatusSeeOther, res.code, res.body)

	reqs := app.backend.Requests()
	var sent *testutil.Request
	for i := range reqs {
		if reqs[i].Method == http.MethodPut {
			sent = &reqs[i]
		}
	}
	require.NotNil(t, sent, app.backend.Calls())
	assert.Equal(t, "/api/goals/"+itoa(ids[0])+"/status", sent.Path)
	assert.JSONEq(t, `{"status":"completed"}`, string(sent.Body))

	goal := app.backend.Items("goals")[0]
	assert.Equal(t, learning.GoalCompleted, goal["status"])
	assert.Equal(t, "learn go", goal["goalName"])
	assert.Contains(t, goal["dueDate"], "2030-01-31")
	assert.EqualValues(t, learning.PriorityHigh, goal["priority"])
	assert.NotContains(t, goal, "entity")
}

func TestTeacherStudentDetail(t *testing.T) {
	app := newTestApp(t)
	ids := app.backend.Seed("students", learning.Student{Username: "ada", Name: "Ada Lovelace", StudentNo: "S-1", Status: "active"})
	sid := itoa(ids[0])
	app.backend.Seed("goals",
		learning.Goal{StudentID: ids[0], Name: "learn go"},
		learning.Goal{StudentID: 99, Name: "someone else's goal"},
	)
	app.backend.Seed("activities", learning.Activity{StudentID: ids[0], Name: "pairing", Type: "project"})
	fids := app.backend.Seed("feedback",
		learning.Feedback{StudentID: ids[0], Content: "too fast"},
		learning.Feedback{StudentID: 99, Content: "not yours"},
	)
	b, _ := app.login("frizzle", "teacher", "Ms Frizzle")

	res := b.get("/teacher/students")
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, `<a href="/teacher/students/`+sid+`">Open</a>`)

	res = b.get("/teacher/students/" + sid)
	require.Equal(t, http.StatusOK, res.code, res.body)
	assert.Contains(t, res.body, "Ada Lovelace")
	assert.Contains(t, res.body, "learn go")
	assert.Contains(t, res.body, "pairing")
	assert.Contains(t, res.body, "too fast")
	assert.NotContains(t, res.body, "someone else&#39;s goal")
	assert.NotContains(t, res.body, "not yours")
	assert.Contains(t, res.body, `<a href="/teacher/students" class="active">Students</a>`)

	b.run(t, []httpTest{
		{
			name:     "empty reply",
			method:   http.MethodPost,
			path:     "/teacher/students/" + sid + "/feedback/" + itoa(fids[0]) + "/reply",
			form:     url.Values{"feedback": {" "}},
			wantCode: http.StatusBadRequest,
			wantBody: []string{"this field is required", "too fast"},
		},
		{
			name:         "reply",
			method:       http.MethodPost,
			path:         "/teacher/students/" + sid + "/feedback/" + itoa(fids[0]) + "/reply",
			form:         url.Values{"feedback": {"I'll slow down"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/teacher/students/" + sid,
		},
		{
			name:         "reply to another student's feedback",
			method:       http.MethodPost,
			path:         "/teacher/students/" + sid + "/feedback/" + itoa(fids[1]) + "/reply",
			form:         url.Values{"feedback": {"hello"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/teacher/students/" + sid,
		},
	})
	feedback := app.backend.Items("feedback")
	assert.Equal(t, "I'll slow down", feedback[0]["response"])
	assert.Nil(t, feedback[1]["response"])

	res = b.get("/teacher/students/" + sid)
	assert.Contains(t, res.body, `class="toast error"`)
	assert.Contains(t, res.body, "feedback not found")

	app.backend.Fail("students", http.StatusNotFound)
	res = b.get("/teacher/students/" + sid)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.body, "students failure")
}

func TestAdminAssignTeacher(t *testing.T) {
	app := newTestApp(t)
	uids := app.backend.Seed("users",
		user.User{Username: "frizzle", Name: "Ms Frizzle", Role: "teacher"},
		user.User{Username: "ada", Name: "Ada", Role: "student"},
	)
	cids := app.backend.Seed("classes", learning.Class{Name: "Go 101", Status: "active"})
	b, _ := app.login("root", "admin", "Root")
	path := "/admin/classes/" + itoa(cids[0]) + "/teacher"

	res := b.get("/admin/classes")
	assert.Contains(t, res.body, `<a href="`+path+`">Assign teacher</a>`)

	res = b.get(path)
	require.Equal(t, http.StatusOK, res.code, res.body)
	assert.Contains(t, res.body, "Go 101")
	assert.Contains(t, res.body, `<option value="`+itoa(uids[0])+`">Ms Frizzle</option>`)
	assert.NotContains(t, res.body, ">Ada</option>")

	b.run(t, []httpTest{
		{name: "no teacher", method: http.MethodPost, path: path, form: url.Values{"teacherId": {""}}, wantCode: http.StatusBadRequest},
		{name: "not a number", method: http.MethodPost, path: path, form: url.Values{"teacherId": {"x"}}, wantCode: http.StatusBadRequest},
		{
			name:         "assign",
			method:       http.MethodPost,
			path:         path,
			form:         url.Values{"teacherId": {itoa(uids[0])}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/admin/classes",
		},
	})
	assert.EqualValues(t, uids[0], app.backend.Items("classes")[0]["teacherId"])

	var sent *testutil.Request
	for _, req := range app.backend.Requests() {
		if req.Path == "/api/admin/class/assignTeacher" {
			req := req
			sent = &req
		}
	}
	require.NotNil(t, sent)
	assert.JSONEq(t, `{"classId":`+itoa(cids[0])+`,"teacherId":`+itoa(uids[0])+`}`, string(sent.Body))

	res = b.get(path)
	assert.Contains(t, res.body, `<option value="`+itoa(uids[0])+`" selected>Ms Frizzle</option>`)
}

func TestStudentProgress(t *testing.T) {
	app := newTestApp(t)
	ids := app.backend.Seed("activities", learning.Activity{Name: "hackathon", Type: "competition"})
	b, _ := app.login("ada", "student", "Ada")
	path := "/student/activities/" + itoa(ids[0]) + "/progress"

	res := b.get("/student/activities")
	assert.Contains(t, res.body, `<a href="`+path+`">Progress</a>`)

	res = b.get(path)
	require.Equal(t, http.StatusOK, res.code, res.body)
	assert.Contains(t, res.body, "hackathon")

	b.run(t, []httpTest{
		{name: "over 100", method: http.MethodPost, path: path, form: url.Values{"progress": {"150"}}, wantCode: http.StatusBadRequest, wantBody: []string{`value="150"`}},
		{
			name:         "update",
			method:       http.MethodPost,
			path:         path,
			form:         url.Values{"progress": {"60"}},
			wantCode:     http.StatusSeeOther,
			wantLocation: "/student/activities",
		},
	})
	assert.EqualValues(t, 60, app.backend.Items("activities")[0]["progress"])
	assert.Contains(t, app.backend.Calls(), "PUT /api/progress/update")

	res = b.get("/student/activities/abc/progress")
	assert.Equal(t, http.StatusOK, res.code, "unknown ids are reported by the backend")
	res = b.post("/student/activities/abc/progress", url.Values{"progress": {"10"}})
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestStudentResources_Recent(t *testing.T) {
	app := newTestApp(t)
	app.backend.Seed("resources",
		learning.Resource{Name: "Oldest", Type: "article"},
		learning.Resource{Name: "Go by Example", Type: "course"},
		learning.Resource{Name: "Effective Go", Type: "article"},
		learning.Resource{Name: "Newest", Type: "research"},
	)
	b, _ := app.login("ada", "student", "Ada")

	res := b.get("/student/resources")
	require.Equal(t, http.StatusOK, res.code)
	recent := res.body[strings.Index(res.body, "Recently added"):]
	assert.Contains(t, recent, "Newest")
	assert.NotContains(t, recent, "Oldest")
	assert.Less(t, strings.Index(recent, "Newest"), strings.Index(recent, "Go by Example"))
	assert.Contains(t, app.backend.Calls(), "GET /api/recommendation/recent")
}

func TestSelectedMenuKey(t *testing.T) {
	keys := []string{"dashboard", "goals", "activities"}
	tests := []struct {
		path string
		want string
	}{
		{"/student/goals", "goals"},
		{"/student/goals/3", "goals"},
		{"/student/activities", "activities"},
		{"/student", "dashboard"},
		{"/student/", "dashboard"},
		{"/student/unknown", "dashboard"},
		{"/teacher/goals", "dashboard"},
		{"/", "dashboard"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.want, selectedMenuKey(tc.path, session.RoleStudent, keys))
		})
	}
}

func TestMount_Transitions(t *testing.T) {
	m := newMount(newShell(session.RoleStudent), session.Session{})
	assert.Equal(t, stateMounting, m.state)
	assert.Panics(t, func() { m.advance(stateReady) }, "cannot skip the identity check")

	m.advance(stateVerifyingIdentity)
	m.advance(stateRedirectingToLogin)
	assert.Equal(t, "redirecting_to_login", m.state.String())
	assert.Panics(t, func() { m.advance(stateReady) }, "redirecting is terminal")
}

func TestShellMenus(t *testing.T) {
	tests := []struct {
		role session.Role
		want []string
	}{
		{session.RoleStudent, []string{"dashboard", "goals", "activities", "resources", "recommendations", "feedback", "analytics", "profile"}},
		{session.RoleTeacher, []string{"dashboard", "students", "goals", "activities", "resources", "feedback", "analytics"}},
		{session.RoleAdmin, []string{"dashboard", "users", "classes", "analytics", "settings"}},
	}
	for _, tc := range tests {
		t.Run(tc.role.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, newShell(tc.role).keys())
		})
	}
	assert.Panics(t, func() { newShell(session.RoleUnknown) })
}
