package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/user"
)

// Collection is a REST resource served at /api/<name>[/<id>].
// Lists come back under the plural key, single items under the singular one.
type Collection[T any] struct {
	client   *Client
	name     string
	singular string
}

func newCollection[T any](c *Client, name, singular string) Collection[T] {
	return Collection[T]{client: c, name: name, singular: singular}
}

func (col Collection[T]) Name() string { return col.name }

func (col Collection[T]) path(id ...string) string {
	p := "/api/" + col.name
	if len(id) > 0 {
		p += "/" + url.PathEscape(id[0])
	}
	return p
}

func (col Collection[T]) op(verb string) string {
	return "apiclient." + col.name + "." + verb
}

func (col Collection[T]) List(ctx context.Context) ([]T, error) {
	op := col.op("List")
	env, err := col.client.get(ctx, op, col.path())
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if err := env.decode(col.name, &items); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return items, nil
}

func (col Collection[T]) Get(ctx context.Context, id string) (T, error) {
	op := col.op("Get")
	var item T
	env, err := col.client.get(ctx, op, col.path(id))
	if err != nil {
		return item, err
	}
	if err := env.decode(col.singular, &item); err != nil {
		return item, &TransportError{Op: op, Err: err}
	}
	return item, nil
}

func (col Collection[T]) Create(ctx context.Context, payload interface{}) error {
	_, err := col.client.do(ctx, col.op("Create"), http.MethodPost, col.path(), payload)
	return err
}

func (col Collection[T]) Update(ctx context.Context, id string, payload interface{}) error {
	_, err := col.client.do(ctx, col.op("Update"), http.MethodPut, col.path(id), payload)
	return err
}

func (col Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := col.client.do(ctx, col.op("Delete"), http.MethodDelete, col.path(id), nil)
	return err
}

// Count reads /api/<name>/count ({count: n}).
func (col Collection[T]) Count(ctx context.Context) (int, error) {
	op := col.op("Count")
	env, err := col.client.get(ctx, op, col.path("count"))
	if err != nil {
		return 0, err
	}
	var count int
	if err := env.decode("count", &count); err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	return count, nil
}

func (c *Client) Goals() Collection[learning.Goal] {
	return newCollection[learning.Goal](c, "goals", "goal")
}

func (c *Client) Activities() Collection[learning.Activity] {
	return newCollection[learning.Activity](c, "activities", "activity")
}

func (c *Client) Resources() Collection[learning.Resource] {
	return newCollection[learning.Resource](c, "resources", "resource")
}

func (c *Client) Feedback() Collection[learning.Feedback] {
	return newCollection[learning.Feedback](c, "feedback", "feedback")
}

func (c *Client) Classes() Collection[learning.Class] {
	return newCollection[learning.Class](c, "classes", "class")
}

func (c *Client) Students() Collection[learning.Student] {
	return newCollection[learning.Student](c, "students", "student")
}

func (c *Client) Users() Collection[user.User] {
	return newCollection[user.User](c, "users", "user")
}
