package echoweb

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/user"
)

// pathID reads a numeric id from the url; anything else is a bad request.
func pathID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, errHttpBadRequest
	}
	return id, nil
}

// Student detail (teachers)

type studentView struct {
	Base       string
	Student    learning.Student
	Goals      []learning.Goal
	Activities []learning.Activity
	Feedback   []learning.Feedback
	// ReplyID is the feedback whose reply was rejected, Errors its field errors.
	ReplyID string
	Errors  map[string]string
}

func registerStudentDetail(s *server, g *echo.Group, r route) {
	g.GET(r.path+"/:id", func(ctx echo.Context) error {
		return s.renderStudent(ctx, r, http.StatusOK, studentView{}, "")
	})
	g.POST(r.path+"/:id/feedback/:fid/reply", func(ctx echo.Context) error {
		studentID, feedbackID := ctx.Param("id"), ctx.Param("fid")
		back := r.base + "/" + studentID

		var form learning.ReplyForm
		if err := ctx.Bind(&form); err != nil {
			return errHttpBadRequest
		}
		if err := form.Validate(s.deps.Validate); err != nil {
			flds := core.FieldErrors(err, s.deps.Translator)
			if flds == nil {
				return errors.Wrap(err, "validating reply")
			}
			view := studentView{ReplyID: feedbackID, Errors: flds}
			return s.renderStudent(ctx, r, http.StatusBadRequest, view, "please correct the errors below")
		}
		if err := s.client(ctx).ReplyFeedback(ctx.Request().Context(), studentID, feedbackID, form); err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			flashError(ctx, msg)
			return redirect(ctx, back)
		}
		flashSuccess(ctx, "reply sent")
		return redirect(ctx, back)
	})
}

// renderStudent shows one student with their goals, activities and feedback.
// The first failing call becomes the notice; the lists that did load are still shown.
func (s *server) renderStudent(ctx echo.Context, r route, code int, view studentView, notice string) error {
	id := ctx.Param("id")
	client, reqCtx := s.client(ctx), ctx.Request().Context()
	view.Base = r.base + "/" + id

	fail := func(err error) error {
		msg, fatal := s.backendError(ctx, err)
		if fatal == nil && notice == "" {
			notice = msg
		}
		return fatal
	}

	student, err := client.Students().Get(reqCtx, id)
	if err != nil {
		if fatal := fail(err); fatal != nil {
			return fatal
		}
		return s.render(ctx, code, "student", "Student", view, notice)
	}
	view.Student = student

	if view.Goals, err = client.StudentGoals(reqCtx, id); err != nil {
		if fatal := fail(err); fatal != nil {
			return fatal
		}
	}
	if view.Activities, err = client.StudentActivities(reqCtx, id); err != nil {
		if fatal := fail(err); fatal != nil {
			return fatal
		}
	}
	if view.Feedback, err = client.StudentFeedback(reqCtx, id); err != nil {
		if fatal := fail(err); fatal != nil {
			return fatal
		}
	}
	return s.render(ctx, code, "student", student.Name, view, notice)
}

// Teacher assignment (admins)

type assignView struct {
	Base     string
	Classes  string
	Class    learning.Class
	Teachers []option
	Errors   map[string]string
}

func registerAssignTeacher(s *server, g *echo.Group, r route) {
	g.GET(r.path+"/:id/teacher", func(ctx echo.Context) error {
		return s.renderAssign(ctx, r, http.StatusOK, nil, "")
	})
	g.POST(r.path+"/:id/teacher", func(ctx echo.Context) error {
		classID, err := pathID(ctx, "id")
		if err != nil {
			return err
		}
		var form learning.AssignTeacherForm
		if err := ctx.Bind(&form); err != nil {
			return errHttpBadRequest
		}
		form.ClassID = classID
		if err := form.Validate(s.deps.Validate); err != nil {
			flds := core.FieldErrors(err, s.deps.Translator)
			if flds == nil {
				return errors.Wrap(err, "validating teacher assignment")
			}
			return s.renderAssign(ctx, r, http.StatusBadRequest, flds, "please correct the errors below")
		}
		if err := s.client(ctx).AssignTeacher(ctx.Request().Context(), form); err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			flashError(ctx, msg)
			return redirect(ctx, ctx.Request().URL.Path)
		}
		flashSuccess(ctx, "teacher assigned")
		return redirect(ctx, r.base)
	})
}

func (s *server) renderAssign(ctx echo.Context, r route, code int, errs map[string]string, notice string) error {
	id := ctx.Param("id")
	client, reqCtx := s.client(ctx), ctx.Request().Context()
	view := assignView{Base: r.base + "/" + id + "/teacher", Classes: r.base, Errors: errs}

	class, err := client.Classes().Get(reqCtx, id)
	var teachers []user.User
	if err == nil {
		view.Class = class
		teachers, err = client.Teachers(reqCtx)
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
	current := itoa(view.Class.TeacherID)
	for _, t := range teachers {
		label := t.Name
		if label == "" {
			label = t.Username
		}
		tid := itoa(t.ID)
		view.Teachers = append(view.Teachers, option{Value: tid, Label: label, Selected: tid == current})
	}
	return s.render(ctx, code, "assign", "Assign a teacher", view, notice)
}

// Activity progress (students)

type progressView struct {
	Base       string
	Activities string
	Activity   learning.Activity
	Progress   string
	Errors     map[string]string
}

func registerProgress(s *server, g *echo.Group, r route) {
	g.GET(r.path+"/:id/progress", func(ctx echo.Context) error {
		return s.renderProgress(ctx, r, http.StatusOK, progressView{}, "")
	})
	g.POST(r.path+"/:id/progress", func(ctx echo.Context) error {
		activityID, err := pathID(ctx, "id")
		if err != nil {
			return err
		}
		var form learning.ProgressForm
		if err := ctx.Bind(&form); err != nil {
			return errHttpBadRequest
		}
		form.ActivityID = activityID
		if err := form.Validate(s.deps.Validate); err != nil {
			flds := core.FieldErrors(err, s.deps.Translator)
			if flds == nil {
				return errors.Wrap(err, "validating progress")
			}
			view := progressView{Progress: strconv.Itoa(form.Progress), Errors: flds}
			return s.renderProgress(ctx, r, http.StatusBadRequest, view, "please correct the errors below")
		}
		if err := s.client(ctx).UpdateProgress(ctx.Request().Context(), form); err != nil {
			msg, fatal := s.backendError(ctx, err)
			if fatal != nil {
				return fatal
			}
			flashError(ctx, msg)
			return redirect(ctx, ctx.Request().URL.Path)
		}
		flashSuccess(ctx, "progress updated")
		return redirect(ctx, r.base)
	})
}

func (s *server) renderProgress(ctx echo.Context, r route, code int, view progressView, notice string) error {
	id := ctx.Param("id")
	view.Base = r.base + "/" + id + "/progress"
	view.Activities = r.base

	activity, err := s.client(ctx).Activities().Get(ctx.Request().Context(), id)
	if err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		if notice == "" {
			notice = msg
		}
	}
	view.Activity = activity
	return s.render(ctx, code, "progress", "Progress", view, notice)
}
