package echoweb

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/services/apiclient"
)

type (
	column[T any] struct {
		Label string
		Value func(T) string
	}

	// field describes one input of a screen's form.
	field struct {
		Name    string
		Label   string
		Type    string // text | textarea | select | date | datetime-local | number | password | url | email
		Options []option
		Value   string
		Error   string
		// CreateOnly fields are left out of update forms.
		CreateOnly bool
	}

	// rowAction links each row to a page of its own at <base>/<id><Suffix>.
	rowAction struct {
		Label  string
		Suffix string
	}

	option struct {
		Value    string
		Label    string
		Selected bool
	}

	// crudScreen is a list + form screen bound to one backend collection.
	// A nil create, update or remove disables the action.
	crudScreen[T any, F any] struct {
		title   string
		noun    string
		columns []column[T]
		fields  []field
		id      func(T) string
		values  func(F) map[string]string
		toForm  func(T) F
		actions []rowAction
		// validate cleans and validates a bound form; creating is false on update.
		validate func(s *server, form *F, creating bool) error

		list   func(ctx context.Context, c *apiclient.Client) ([]T, error)
		create func(ctx context.Context, c *apiclient.Client, form F) error
		update func(ctx context.Context, c *apiclient.Client, id string, form F) error
		remove func(ctx context.Context, c *apiclient.Client, id string) error
	}

	crudRow struct {
		ID    string
		Cells []string
	}

	crudView struct {
		Title     string
		Noun      string
		Base      string
		Columns   []string
		Rows      []crudRow
		Fields    []field
		EditingID string
		Actions   []rowAction
		// FormOnly is set when an invalid form is sent back without re-fetching the list.
		FormOnly  bool
		CanCreate bool
		CanUpdate bool
		CanDelete bool
	}
)

// screen turns the crud screen into a menu entry. extra registers the pages behind its row actions.
func (cs *crudScreen[T, F]) screen(key, label string, extra ...func(s *server, g *echo.Group, r route)) screen {
	return screen{key: key, label: label, register: func(s *server, g *echo.Group, r route) {
		cs.register(s, g, r)
		for _, reg := range extra {
			reg(s, g, r)
		}
	}}
}

func (cs *crudScreen[T, F]) register(s *server, g *echo.Group, r route) {
	g.GET(r.path, func(ctx echo.Context) error { return cs.index(s, ctx, r) })
	if cs.create != nil {
		g.POST(r.path, func(ctx echo.Context) error { return cs.save(s, ctx, r, "") })
	}
	if cs.update != nil {
		g.PUT(r.path+"/:id", func(ctx echo.Context) error { return cs.save(s, ctx, r, ctx.Param("id")) })
	}
	if cs.remove != nil {
		g.DELETE(r.path+"/:id", func(ctx echo.Context) error { return cs.delete(s, ctx, r) })
	}
}

func (cs *crudScreen[T, F]) view(r route) crudView {
	v := crudView{
		Title:     cs.title,
		Noun:      cs.noun,
		Base:      r.base,
		Columns:   make([]string, 0, len(cs.columns)),
		CanCreate: cs.create != nil,
		CanUpdate: cs.update != nil,
		CanDelete: cs.remove != nil,
		Actions:   cs.actions,
	}
	for _, col := range cs.columns {
		v.Columns = append(v.Columns, col.Label)
	}
	return v
}

func (cs *crudScreen[T, F]) rows(items []T) []crudRow {
	rows := make([]crudRow, 0, len(items))
	for _, item := range items {
		row := crudRow{ID: cs.id(item), Cells: make([]string, 0, len(cs.columns))}
		for _, col := range cs.columns {
			row.Cells = append(row.Cells, col.Value(item))
		}
		rows = append(rows, row)
	}
	return rows
}

// formFields fills the declared fields with values and errors.
func (cs *crudScreen[T, F]) formFields(values, errs map[string]string, updating bool) []field {
	if cs.create == nil && !updating {
		return nil
	}
	flds := make([]field, 0, len(cs.fields))
	for _, fld := range cs.fields {
		if updating && fld.CreateOnly {
			continue
		}
		fld.Value = values[fld.Name]
		fld.Error = errs[fld.Name]
		if len(fld.Options) > 0 {
			opts := make([]option, len(fld.Options))
			for i, opt := range fld.Options {
				opt.Selected = opt.Value == fld.Value
				opts[i] = opt
			}
			fld.Options = opts
		}
		if fld.Type == "password" {
			fld.Value = ""
		}
		flds = append(flds, fld)
	}
	return flds
}

// index lists the collection, with the create form or, given ?edit=<id>, the prefilled update form.
func (cs *crudScreen[T, F]) index(s *server, ctx echo.Context, r route) error {
	view := cs.view(r)
	var notice string

	items, err := cs.list(ctx.Request().Context(), s.client(ctx))
	if err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		notice = msg
	}
	view.Rows = cs.rows(items)

	var values map[string]string
	if editID := ctx.QueryParam("edit"); editID != "" && cs.update != nil {
		for _, item := range items {
			if cs.id(item) == editID {
				values = cs.values(cs.toForm(item))
				view.EditingID = editID
				break
			}
		}
		if view.EditingID == "" && err == nil {
			notice = cs.noun + " not found"
		}
	}
	view.Fields = cs.formFields(values, nil, view.EditingID != "")
	return s.render(ctx, http.StatusOK, "crud", cs.title, view, notice)
}

// save creates (id == "") or updates an item. Invalid input is sent back inline and nothing is sent to the backend.
func (cs *crudScreen[T, F]) save(s *server, ctx echo.Context, r route, id string) error {
	creating := id == ""

	var form F
	if err := ctx.Bind(&form); err != nil {
		return errHttpBadRequest
	}
	if err := cs.validate(s, &form, creating); err != nil {
		flds := core.FieldErrors(err, s.deps.Translator)
		if flds == nil {
			return errors.Wrap(err, "validating "+cs.noun)
		}
		view := cs.view(r)
		view.FormOnly = true
		view.EditingID = id
		view.Fields = cs.formFields(cs.values(form), flds, !creating)
		return s.render(ctx, http.StatusBadRequest, "crud", cs.title, view, "please correct the errors below")
	}

	var err error
	if creating {
		err = cs.create(ctx.Request().Context(), s.client(ctx), form)
	} else {
		err = cs.update(ctx.Request().Context(), s.client(ctx), id, form)
	}
	if err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		flashError(ctx, msg)
		if !creating {
			return redirect(ctx, r.base+"?edit="+url.QueryEscape(id))
		}
		return redirect(ctx, r.base)
	}

	if creating {
		flashSuccess(ctx, cs.noun+" created")
	} else {
		flashSuccess(ctx, cs.noun+" updated")
	}
	return redirect(ctx, r.base)
}

// delete removes an item; the redirect (and so the list refresh) is only sent once the backend answered.
func (cs *crudScreen[T, F]) delete(s *server, ctx echo.Context, r route) error {
	if err := cs.remove(ctx.Request().Context(), s.client(ctx), ctx.Param("id")); err != nil {
		msg, fatal := s.backendError(ctx, err)
		if fatal != nil {
			return fatal
		}
		flashError(ctx, msg)
		return redirect(ctx, r.base)
	}
	flashSuccess(ctx, cs.noun+" deleted")
	return redirect(ctx, r.base)
}

// backendError sorts a failed backend call. Unauthorized and cancelled calls are returned
// for the error handler; anything else is logged and turned into a message for the user.
func (s *server) backendError(ctx echo.Context, err error) (string, error) {
	if apiclient.IsUnauthorized(err) || apiclient.IsCanceled(err) {
		return "", err
	}
	kind := "status"
	var tErr *apiclient.TransportError
	if errors.As(err, &tErr) {
		kind = "transport"
	}
	s.metrics.backendError(kind)
	s.deps.Logger.Warn("backend call failed", err, currentSession(ctx))
	return apiclient.Message(err), nil
}
