package echoweb

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/session"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
)

// Dashboard

type (
	counter struct {
		label string
		key   string
		count func(ctx context.Context, c *apiclient.Client) (int, error)
	}

	stat struct {
		Label string
		Count int
		Href  string
	}

	dashboardView struct {
		Greeting string
		Stats    []stat
		Progress *learning.Progress
	}
)

func countOf[T any](label, key string, col func(*apiclient.Client) apiclient.Collection[T]) counter {
	return counter{label: label, key: key, count: func(ctx context.Context, c *apiclient.Client) (int, error) {
		return col(c).Count(ctx)
	}}
}

func dashboardCounters(role session.Role) []counter {
	switch role {
	case session.RoleStudent:
		return []counter{
			countOf("Goals", "goals", (*apiclient.Client).Goals),
			countOf("Activities", "activities", (*apiclient.Client).Activities),
			countOf("Feedback", "feedback", (*apiclient.Client).Feedback),
		}
	case session.RoleTeacher:
		return []counter{
			countOf("Students", "students", (*apiclient.Client).Students),
			countOf("Goals", "goals", (*apiclient.Client).Goals),
			countOf("Activities", "activities", (*apiclient.Client).Activities),
			countOf("Resources", "resources", (*apiclient.Client).Resources),
			countOf("Feedback", "feedback", (*apiclient.Client).Feedback),
		}
	case session.RoleAdmin:
		return []counter{
			countOf("Users", "users", (*apiclient.Client).Users),
			countOf("Classes", "classes", (*apiclient.Client).Classes),
			countOf("Students", "students", (*apiclient.Client).Students),
		}
	default:
		return nil
	}
}

func dashboardScreen() screen {
	return screen{key: "dashboard", label: "Dashboard", register: func(s *server, g *echo.Group, r route) {
		g.GET(r.path, s.handleDashboard)
	}}
}

func (s *server) handleDashboard(ctx echo.Context) error {
	m := currentMount(ctx)
	reqCtx, client := ctx.Request().Context(), s.client(ctx)
	view := dashboardView{Greeting: "Welcome back, " + m.sess.DisplayName}
	var notice string

	for _, cnt := range dashboardCounters(m.shell.role) {
		n, err := cnt.count(reqCtx, client)
		if err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			notice = msg
			continue
		}
		view.Stats = append(view.Stats, stat{Label: cnt.label, Count: n, Href: m.shell.role.Root() + "/" + cnt.key})
	}

	if m.shell.role == session.RoleStudent {
		progress, err := client.Progress(reqCtx)
		if err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			notice = msg
		} else {
			view.Progress = &progress
		}
	}
	return s.render(ctx, http.StatusOK, "dashboard", "Dashboard", view, notice)
}

// Analytics

type (
	figure struct {
		Label string
		Value string
	}

	breakdown struct {
		Title   string
		Buckets []learning.Bucket
	}

	analyticsView struct {
		Figures    []figure
		Breakdowns []breakdown
	}
)

func analyticsScreen() screen {
	return screen{key: "analytics", label: "Analytics", register: func(s *server, g *echo.Group, r route) {
		g.GET(r.path, s.handleAnalytics)
	}}
}

func (s *server) handleAnalytics(ctx echo.Context) error {
	m := currentMount(ctx)
	view, err := s.analytics(ctx.Request().Context(), s.client(ctx), m.shell.role)
	var notice string
	if err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		notice = msg
	}
	return s.render(ctx, http.StatusOK, "analytics", "Analytics", view, notice)
}

// analytics aggregates the role's lists. Students and teachers look at goals and activities, admins at accounts.
func (s *server) analytics(ctx context.Context, c *apiclient.Client, role session.Role) (analyticsView, error) {
	var view analyticsView
	if role == session.RoleAdmin {
		users, err := c.Users().List(ctx)
		if err != nil {
			return view, err
		}
		classes, err := c.Classes().List(ctx)
		if err != nil {
			return view, err
		}
		view.Figures = []figure{
			{Label: "Users", Value: fmt.Sprint(len(users))},
			{Label: "Classes", Value: fmt.Sprint(len(classes))},
		}
		view.Breakdowns = []breakdown{
			{Title: "Users by role", Buckets: learning.CountBy(users, func(u user.User) string { return u.Role })},
			{Title: "Users by status", Buckets: learning.CountBy(users, func(u user.User) string { return u.Status })},
			{Title: "Classes by status", Buckets: learning.CountBy(classes, func(c learning.Class) string { return c.Status })},
		}
		return view, nil
	}

	goals, err := c.Goals().List(ctx)
	if err != nil {
		return view, err
	}
	activities, err := c.Activities().List(ctx)
	if err != nil {
		return view, err
	}
	view.Figures = []figure{
		{Label: "Goals", Value: fmt.Sprint(len(goals))},
		{Label: "Goals completed", Value: fmt.Sprintf("%d%%", learning.CompletionRate(goals))},
		{Label: "Activities", Value: fmt.Sprint(len(activities))},
		{Label: "Hours spent", Value: fmt.Sprintf("%.1f", learning.TotalHours(activities))},
	}
	view.Breakdowns = []breakdown{
		{Title: "Goals by status", Buckets: learning.GoalsByStatus(goals)},
		{Title: "Activities by type", Buckets: learning.ActivitiesByType(activities)},
	}
	return view, nil
}

// Student resources

type resourcesView struct {
	Base      string
	Keyword   string
	Resources []learning.Resource
	Recent    []learning.Resource
	// Rating holds the errors of a rejected rating, keyed by field.
	Rating   map[string]string
	RatingID string
}

func registerStudentResources(s *server, g *echo.Group, r route) {
	g.GET(r.path, func(ctx echo.Context) error {
		return s.renderResources(ctx, r, http.StatusOK, resourcesView{}, "")
	})
	g.POST(r.path+"/:id/rate", func(ctx echo.Context) error {
		id := ctx.Param("id")
		var form learning.RateForm
		if err := ctx.Bind(&form); err != nil {
			return errHttpBadRequest
		}
		if err := form.Validate(s.deps.Validate); err != nil {
			flds := core.FieldErrors(err, s.deps.Translator)
			if flds == nil {
				return errors.Wrap(err, "validating rating")
			}
			return s.renderResources(ctx, r, http.StatusBadRequest, resourcesView{Rating: flds, RatingID: id}, "please correct the errors below")
		}
		if err := s.client(ctx).RateResource(ctx.Request().Context(), id, form); err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			flashError(ctx, msg)
			return redirect(ctx, r.base)
		}
		flashSuccess(ctx, "thanks for rating this resource")
		return redirect(ctx, r.base)
	})
}

// renderResources lists the resources, or the ones matching ?keyword=, next to the latest additions.
func (s *server) renderResources(ctx echo.Context, r route, code int, view resourcesView, notice string) error {
	view.Base = r.base
	view.Keyword = core.CleanString(ctx.QueryParam("keyword"))

	var (
		resources []learning.Resource
		err       error
	)
	if view.Keyword != "" {
		resources, err = s.client(ctx).SearchResources(ctx.Request().Context(), view.Keyword)
	} else {
		resources, err = s.client(ctx).Resources().List(ctx.Request().Context())
	}
	if err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		if notice == "" {
			notice = msg
		}
	}
	view.Resources = resources

	if view.Recent, err = s.client(ctx).RecentResources(ctx.Request().Context()); err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		if notice == "" {
			notice = msg
		}
	}
	return s.render(ctx, code, "resources", "Resources", view, notice)
}

// Recommendations

type recommendationsView struct {
	Base            string
	Recommendations []learning.Recommendation
	Popular         []learning.Resource
	Errors          map[string]string
}

func registerRecommendations(s *server, g *echo.Group, r route) {
	g.GET(r.path, func(ctx echo.Context) error {
		return s.renderRecommendations(ctx, r, http.StatusOK, nil, "")
	})
	g.POST(r.path+"/feedback", func(ctx echo.Context) error {
		var form learning.RecommendationFeedbackForm
		if err := ctx.Bind(&form); err != nil {
			return errHttpBadRequest
		}
		if err := form.Validate(s.deps.Validate); err != nil {
			flds := core.FieldErrors(err, s.deps.Translator)
			if flds == nil {
				return errors.Wrap(err, "validating recommendation feedback")
			}
			return s.renderRecommendations(ctx, r, http.StatusBadRequest, flds, "please correct the errors below")
		}
		if err := s.client(ctx).SubmitRecommendationFeedback(ctx.Request().Context(), form); err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			flashError(ctx, msg)
			return redirect(ctx, r.base)
		}
		flashSuccess(ctx, "thanks, your recommendations will improve")
		return redirect(ctx, r.base)
	})
}

func (s *server) renderRecommendations(ctx echo.Context, r route, code int, errs map[string]string, notice string) error {
	view := recommendationsView{Base: r.base, Errors: errs}
	client, reqCtx := s.client(ctx), ctx.Request().Context()

	recs, err := client.Recommendations(reqCtx)
	if err == nil {
		view.Recommendations = recs
		view.Popular, err = client.PopularResources(reqCtx)
	}
	if err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		if notice == "" {
			notice = msg
		}
	}
	return s.render(ctx, code, "recommendations", "Recommendations", view, notice)
}

// Profile

type profileView struct {
	Base   string
	Info   user.Info
	Role   string
	Avatar string
	Errors map[string]string
}

func registerProfile(s *server, g *echo.Group, r route) {
	g.GET(r.path, func(ctx echo.Context) error {
		info := currentMount(ctx).info
		return s.render(ctx, http.StatusOK, "profile", "Profile", profileView{
			Base:   r.base,
			Info:   info,
			Role:   info.ParsedRole().Title(),
			Avatar: info.Avatar,
		})
	})
	g.PUT(r.path, func(ctx echo.Context) error {
		var form user.ProfileForm
		if err := ctx.Bind(&form); err != nil {
			return errHttpBadRequest
		}
		if err := form.Validate(s.deps.Validate); err != nil {
			flds := core.FieldErrors(err, s.deps.Translator)
			if flds == nil {
				return errors.Wrap(err, "validating profile")
			}
			info := currentMount(ctx).info
			return s.render(ctx, http.StatusBadRequest, "profile", "Profile", profileView{
				Base:   r.base,
				Info:   info,
				Role:   info.ParsedRole().Title(),
				Avatar: form.Avatar,
				Errors: flds,
			}, "please correct the errors below")
		}
		if err := s.client(ctx).UpdateProfile(ctx.Request().Context(), form); err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			flashError(ctx, msg)
			return redirect(ctx, r.base)
		}
		flashSuccess(ctx, "profile updated")
		return redirect(ctx, r.base)
	})
}

// Settings

func registerSettings(s *server, g *echo.Group, r route) {
	g.GET(r.path, func(ctx echo.Context) error {
		conf := s.deps.Conf
		settings := []figure{
			{Label: "Application", Value: conf.AppName},
			{Label: "Environment", Value: conf.Env},
			{Label: "Build", Value: conf.Build},
			{Label: "Debug", Value: fmt.Sprint(conf.Debug)},
			{Label: "Backend URL", Value: conf.Backend.BaseURL},
			{Label: "Backend timeout", Value: conf.Backend.Timeout.String()},
			{Label: "Session backend", Value: conf.Session.Backend},
			{Label: "Session cookie", Value: conf.Session.CookieName},
			{Label: "Secure cookie", Value: fmt.Sprint(conf.Session.CookieSecure)},
		}
		return s.render(ctx, http.StatusOK, "settings", "Settings", settings)
	})
}
