// Package testutil runs an in-process fake of the learning REST backend for package tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

const ItemsPerEntity = 100

// Request is one call received by the fake backend.
type Request struct {
	Method string
	Path   string
	Token  string
	Body   []byte
}

type account struct {
	username  string
	password  string
	role      string
	name      string
	avatar    string
	anonymous bool // user info reports neither username nor name
}

type table struct {
	nextID int64
	rows   map[int64]map[string]interface{}
}

// Backend is a fake REST backend speaking the {status, message, <key>} envelope.
type Backend struct {
	*httptest.Server

	mutex    sync.Mutex
	accounts map[string]*account // username -> account
	tokens   map[string]string   // token -> username
	tables   map[string]*table
	failures map[string]int
	requests []Request
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		tables:   make(map[string]*table),
		failures: make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(b.record)

	api := e.Group("/api")
	api.POST("/user/login", b.login)
	api.POST("/user/register", b.register)

	authed := api.Group("", b.authenticate)
	authed.GET("/user/info", b.userInfo)
	authed.PUT("/user", b.updateProfile)
	authed.GET("/progress", b.progress)
	authed.GET("/recommendation", b.recommendations)
	authed.GET("/recommendation/popular", b.popular)
	authed.GET("/recommendation/recent", b.recent)
	authed.POST("/recommendation/feedback", b.ok("recommendation"))
	authed.GET("/resources/search", b.searchResources)
	authed.POST("/resources/:id/feedback", b.ok("resources"))
	authed.POST("/feedback/:id/respond", b.respond)
	authed.PUT("/goals/:id/status", b.goalStatus)
	authed.PUT("/progress/update", b.updateProgress)
	authed.GET("/teacher/student/:id/goals", b.ofStudent("goals", "goals"))
	authed.GET("/teacher/student/:id/activities", b.ofStudent("activities", "activities"))
	authed.GET("/teacher/student/:id/feedbacks", b.ofStudent("feedback", "feedbacks"))
	authed.POST("/teacher/student/:id/feedback/:fid/reply", b.reply)
	authed.GET("/admin/teachers", b.teachers)
	authed.POST("/admin/class/assignTeacher", b.assignTeacher)
	authed.GET("/:entity", b.list)
	authed.POST("/:entity", b.create)
	authed.GET("/:entity/:id", b.get)
	authed.PUT("/:entity/:id", b.update)
	authed.DELETE("/:entity/:id", b.delete)

	b.Server = httptest.NewServer(e)
	t.Cleanup(b.Close)
	return b
}

// AddUser registers an account and returns a valid token for it.
func (b *Backend) AddUser(username, password, role, name string) string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.accounts[username] = &account{username: username, password: password, role: role, name: name}
	token := "tok-" + username
	b.tokens[token] = username
	return token
}

// SetRole changes the role the backend reports for a token's account.
func (b *Backend) SetRole(token, role string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if acc, ok := b.accounts[b.tokens[token]]; ok {
		acc.role = role
	}
}

// Anonymize makes the user info of username report neither a username nor a name.
func (b *Backend) Anonymize(username string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if acc, ok := b.accounts[username]; ok {
		acc.anonymous = true
	}
}

// RevokeToken makes every later call with token fail with 401.
func (b *Backend) RevokeToken(token string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.tokens, token)
}

// Fail makes calls on name (an entity such as "goals", or one of
// "login", "info", "register", "progress", "recommendation") answer with the given application status.
// A status of 0 removes the failure.
func (b *Backend) Fail(name string, status int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status == 0 {
		delete(b.failures, name)
		return
	}
	b.failures[name] = status
}

// Seed stores items (any JSON-marshallable values) in entity and returns their ids.
func (b *Backend) Seed(entity string, items ...interface{}) []int64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			panic(err)
		}
		row := make(map[string]interface{})
		if err := json.Unmarshal(raw, &row); err != nil {
			panic(err)
		}
		ids = append(ids, b.insert(entity, row))
	}
	return ids
}

// Items returns the rows of entity ordered by id.
func (b *Backend) Items(entity string) []map[string]interface{} {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.rows(entity)
}

// Requests returns a copy of every call received so far.
func (b *Backend) Requests() []Request {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	reqs := make([]Request, len(b.requests))
	copy(reqs, b.requests)
	return reqs
}

// Calls returns "METHOD /path" for every call received so far, in order.
func (b *Backend) Calls() []string {
	reqs := b.Requests()
	calls := make([]string, 0, len(reqs))
	for _, r := range reqs {
		calls = append(calls, r.Method+" "+r.Path)
	}
	return calls
}

func (b *Backend) ResetRequests() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.requests = nil
}

// internals; callers hold b.mutex

func (b *Backend) table(entity string) *table {
	tbl, ok := b.tables[entity]
	if !ok {
		tbl = &table{rows: make(map[int64]map[string]interface{})}
		b.tables[entity] = tbl
	}
	return tbl
}

func (b *Backend) insert(entity string, row map[string]interface{}) int64 {
	tbl := b.table(entity)
	tbl.nextID++
	row["id"] = tbl.nextID
	tbl.rows[tbl.nextID] = row
	return tbl.nextID
}

func (b *Backend) rows(entity string) []map[string]interface{} {
	tbl := b.table(entity)
	ids := make([]int64, 0, len(tbl.rows))
	for id := range tbl.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, tbl.rows[id])
	}
	return rows
}

func (b *Backend) failure(names ...string) (int, bool) {
	for _, name := range names {
		if status, ok := b.failures[name]; ok {
			return status, true
		}
	}
	return 0, false
}

// handlers

func envelope(status int, kv ...interface{}) map[string]interface{} {
	env := map[string]interface{}{"status": status}
	for i := 0; i+1 < len(kv); i += 2 {
		env[kv[i].(string)] = kv[i+1]
	}
	return env
}

func fail(ctx echo.Context, status int, msg string) error {
	return ctx.JSON(http.StatusOK, envelope(status, "message", msg))
}

func bearer(ctx echo.Context) string {
	return strings.TrimPrefix(ctx.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
}

func (b *Backend) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(strings.NewReader(string(body)))
		}
		b.mutex.Lock()
		b.requests = append(b.requests, Request{Method: req.Method, Path: req.URL.RequestURI(), Token: bearer(ctx), Body: body})
		b.mutex.Unlock()
		return next(ctx)
	}
}

func (b *Backend) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		b.mutex.Lock()
		uname, ok := b.tokens[bearer(ctx)]
		b.mutex.Unlock()
		if !ok {
			return ctx.JSON(http.StatusUnauthorized, envelope(http.StatusUnauthorized, "message", "invalid token"))
		}
		ctx.Set("username", uname)
		return next(ctx)
	}
}

func (b *Backend) currentAccount(ctx echo.Context) *account {
	uname, _ := ctx.Get("username").(string)
	return b.accounts[uname]
}

func (b *Backend) login(ctx echo.Context) error {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.Bind(&creds); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("login"); ok {
		return fail(ctx, status, "login failure")
	}
	acc, ok := b.accounts[creds.Username]
	if !ok || acc.password != creds.Password {
		return fail(ctx, http.StatusUnauthorized, "invalid username or password")
	}
	token := "tok-" + acc.username
	b.tokens[token] = acc.username
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "token", token, "role", acc.role))
}

func (b *Backend) register(ctx echo.Context) error {
	var acc struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Avatar   string `json:"avatar"`
	}
	if err := ctx.Bind(&acc); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("register"); ok {
		return fail(ctx, status, "register failure")
	}
	if _, exists := b.accounts[acc.Username]; exists {
		return fail(ctx, http.StatusConflict, "username already taken")
	}
	b.accounts[acc.Username] = &account{username: acc.Username, password: acc.Password, role: acc.Role, avatar: acc.Avatar}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "registered"))
}

func (b *Backend) userInfo(ctx echo.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("info"); ok {
		return fail(ctx, status, "info failure")
	}
	acc := b.currentAccount(ctx)
	if acc.anonymous {
		return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "username", "", "role", acc.role, "name", ""))
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK,
		"username", acc.username, "role", acc.role, "name", acc.name, "avatar", acc.avatar))
}

func (b *Backend) updateProfile(ctx echo.Context) error {
	var profile struct {
		Avatar string `json:"avatar"`
	}
	if err := ctx.Bind(&profile); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("info", "users"); ok {
		return fail(ctx, status, "update failure")
	}
	b.currentAccount(ctx).avatar = profile.Avatar
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "updated"))
}

func (b *Backend) progress(ctx echo.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("progress"); ok {
		return fail(ctx, status, "progress failure")
	}
	goals, activities := b.rows("goals"), b.rows("activities")
	var completedGoals int
	for _, g := range goals {
		if g["status"] == "completed" {
			completedGoals++
		}
	}
	total := len(goals) + len(activities)
	overall := 0
	if total > 0 {
		overall = completedGoals * 100 / total
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "progress", map[string]interface{}{
		"overallProgress":     overall,
		"totalActivities":     len(activities),
		"completedActivities": 0,
		"totalGoals":          len(goals),
		"completedGoals":      completedGoals,
	}))
}

func (b *Backend) recommendations(ctx echo.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("recommendation"); ok {
		return fail(ctx, status, "recommendation failure")
	}
	recs := make([]map[string]interface{}, 0)
	for _, r := range b.rows("resources") {
		recs = append(recs, map[string]interface{}{
			"resourceId":   r["id"],
			"resourceName": r["resourceName"],
			"resourceType": r["resourceType"],
			"resourceUrl":  r["resourceUrl"],
			"reason":       "popular with your classmates",
		})
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "recommendations", recs))
}

func (b *Backend) popular(ctx echo.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("recommendation"); ok {
		return fail(ctx, status, "recommendation failure")
	}
	rows := b.rows("resources")
	if len(rows) > 3 {
		rows = rows[:3]
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "resources", rows))
}

func (b *Backend) searchResources(ctx echo.Context) error {
	keyword := strings.ToLower(ctx.QueryParam("keyword"))
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("resources"); ok {
		return fail(ctx, status, "resources failure")
	}
	found := make([]map[string]interface{}, 0)
	for _, r := range b.rows("resources") {
		if name, _ := r["resourceName"].(string); strings.Contains(strings.ToLower(name), keyword) {
			found = append(found, r)
		}
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "resources", found))
}

func (b *Backend) ok(name string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		if status, ok := b.failure(name); ok {
			return fail(ctx, status, name+" failure")
		}
		return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "ok"))
	}
}

func (b *Backend) respond(ctx echo.Context) error {
	var body struct {
		Response string `json:"response"`
	}
	if err := ctx.Bind(&body); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	id, _ := strconv.ParseInt(ctx.Param("id"), 10, 64)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("feedback"); ok {
		return fail(ctx, status, "feedback failure")
	}
	row, ok := b.table("feedback").rows[id]
	if !ok {
		return fail(ctx, http.StatusNotFound, "feedback not found")
	}
	row["response"] = body.Response
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "responded"))
}

func (b *Backend) goalStatus(ctx echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := ctx.Bind(&body); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	id, _ := strconv.ParseInt(ctx.Param("id"), 10, 64)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("goals"); ok {
		return fail(ctx, status, "goals failure")
	}
	row, ok := b.table("goals").rows[id]
	if !ok {
		return fail(ctx, http.StatusNotFound, "goal not found")
	}
	row["status"] = body.Status
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "status updated"))
}

func (b *Backend) updateProgress(ctx echo.Context) error {
	var body struct {
		ActivityID int64 `json:"activityId"`
		Progress   int   `json:"progress"`
	}
	if err := ctx.Bind(&body); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("progress"); ok {
		return fail(ctx, status, "progress failure")
	}
	row, ok := b.table("activities").rows[body.ActivityID]
	if !ok {
		return fail(ctx, http.StatusNotFound, "activity not found")
	}
	row["progress"] = body.Progress
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "progress updated"))
}

func (b *Backend) recent(ctx echo.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("recommendation"); ok {
		return fail(ctx, status, "recommendation failure")
	}
	rows := b.rows("resources")
	recent := make([]map[string]interface{}, 0, 3)
	for i := len(rows) - 1; i >= 0 && len(recent) < 3; i-- {
		recent = append(recent, rows[i])
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "resources", recent))
}

// studentRows returns the rows of entity that belong to the student id.
func (b *Backend) studentRows(entity, studentID string) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0)
	for _, r := range b.rows(entity) {
		if fmt.Sprint(r["studentId"]) == studentID {
			rows = append(rows, r)
		}
	}
	return rows
}

func (b *Backend) ofStudent(entity, key string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		if status, ok := b.failure(entity); ok {
			return fail(ctx, status, entity+" failure")
		}
		return ctx.JSON(http.StatusOK, envelope(http.StatusOK, key, b.studentRows(entity, ctx.Param("id"))))
	}
}

func (b *Backend) reply(ctx echo.Context) error {
	var body struct {
		Feedback string `json:"feedback"`
	}
	if err := ctx.Bind(&body); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	studentID := ctx.Param("id")
	id, _ := strconv.ParseInt(ctx.Param("fid"), 10, 64)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("feedback"); ok {
		return fail(ctx, status, "feedback failure")
	}
	row, ok := b.table("feedback").rows[id]
	if !ok || fmt.Sprint(row["studentId"]) != studentID {
		return fail(ctx, http.StatusNotFound, "feedback not found")
	}
	row["response"] = body.Feedback
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "replied"))
}

func (b *Backend) teachers(ctx echo.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("users"); ok {
		return fail(ctx, status, "users failure")
	}
	teachers := make([]map[string]interface{}, 0)
	for _, u := range b.rows("users") {
		if u["role"] == "teacher" {
			teachers = append(teachers, u)
		}
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "teachers", teachers))
}

func (b *Backend) assignTeacher(ctx echo.Context) error {
	var body struct {
		ClassID   int64 `json:"classId"`
		TeacherID int64 `json:"teacherId"`
	}
	if err := ctx.Bind(&body); err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure("classes"); ok {
		return fail(ctx, status, "classes failure")
	}
	row, ok := b.table("classes").rows[body.ClassID]
	if !ok {
		return fail(ctx, http.StatusNotFound, "class not found")
	}
	row["teacherId"] = body.TeacherID
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "teacher assigned"))
}

func (b *Backend) list(ctx echo.Context) error {
	entity := ctx.Param("entity")
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure(entity); ok {
		return fail(ctx, status, entity+" failure")
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, entity, b.rows(entity)))
}

// bindRow decodes the JSON body only: path params must not end up in the stored row.
func bindRow(ctx echo.Context) (map[string]interface{}, error) {
	row := make(map[string]interface{})
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &row); err != nil {
		return nil, err
	}
	delete(row, "id")
	delete(row, "password")
	return row, nil
}

func (b *Backend) create(ctx echo.Context) error {
	entity := ctx.Param("entity")
	row, err := bindRow(ctx)
	if err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure(entity); ok {
		return fail(ctx, status, entity+" failure")
	}
	if len(b.table(entity).rows) >= ItemsPerEntity {
		return fail(ctx, http.StatusInsufficientStorage, "too many items")
	}
	id := b.insert(entity, row)
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "created", "id", id))
}

func (b *Backend) get(ctx echo.Context) error {
	entity, rawID := ctx.Param("entity"), ctx.Param("id")
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure(entity); ok {
		return fail(ctx, status, entity+" failure")
	}
	if rawID == "count" {
		return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "count", len(b.table(entity).rows)))
	}
	id, _ := strconv.ParseInt(rawID, 10, 64)
	row, ok := b.table(entity).rows[id]
	if !ok {
		return fail(ctx, http.StatusNotFound, fmt.Sprintf("%s %s not found", entity, rawID))
	}
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, singular(entity), row))
}

// update replaces the whole record, like the real backend does.
func (b *Backend) update(ctx echo.Context) error {
	entity := ctx.Param("entity")
	id, _ := strconv.ParseInt(ctx.Param("id"), 10, 64)
	row, err := bindRow(ctx)
	if err != nil {
		return fail(ctx, http.StatusBadRequest, "bad request")
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure(entity); ok {
		return fail(ctx, status, entity+" failure")
	}
	tbl := b.table(entity)
	if _, ok := tbl.rows[id]; !ok {
		return fail(ctx, http.StatusNotFound, "not found")
	}
	row["id"] = id
	tbl.rows[id] = row
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "updated"))
}

func (b *Backend) delete(ctx echo.Context) error {
	entity := ctx.Param("entity")
	id, _ := strconv.ParseInt(ctx.Param("id"), 10, 64)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if status, ok := b.failure(entity); ok {
		return fail(ctx, status, entity+" failure")
	}
	tbl := b.table(entity)
	if _, ok := tbl.rows[id]; !ok {
		return fail(ctx, http.StatusNotFound, "not found")
	}
	delete(tbl.rows, id)
	return ctx.JSON(http.StatusOK, envelope(http.StatusOK, "message", "deleted"))
}

func singular(entity string) string {
	switch entity {
	case "activities":
		return "activity"
	case "classes":
		return "class"
	case "feedback":
		return "feedback"
	default:
		return strings.TrimSuffix(entity, "s")
	}
}
