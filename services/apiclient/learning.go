package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/user"
)

// getList reads the list stored under key at path.
func getList[T any](ctx context.Context, c *Client, op, path, key string) ([]T, error) {
	env, err := c.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if err := env.decode(key, &items); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return items, nil
}

func studentPath(studentID string, rest ...string) string {
	p := "/api/teacher/student/" + url.PathEscape(studentID)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// SearchResources looks resources up by keyword.
func (c *Client) SearchResources(ctx context.Context, keyword string) ([]learning.Resource, error) {
	params := url.Values{}
	params.Set("keyword", keyword)
	return getList[learning.Resource](ctx, c, "apiclient.SearchResources", "/api/resources/search?"+params.Encode(), "resources")
}

func (c *Client) RateResource(ctx context.Context, resourceID string, form learning.RateForm) error {
	_, err := c.do(ctx, "apiclient.RateResource", http.MethodPost, "/api/resources/"+url.PathEscape(resourceID)+"/feedback", form)
	return err
}

// Recommendations returns the resources recommended to the current student.
func (c *Client) Recommendations(ctx context.Context) ([]learning.Recommendation, error) {
	return getList[learning.Recommendation](ctx, c, "apiclient.Recommendations", "/api/recommendation", "recommendations")
}

func (c *Client) PopularResources(ctx context.Context) ([]learning.Resource, error) {
	return getList[learning.Resource](ctx, c, "apiclient.PopularResources", "/api/recommendation/popular", "resources")
}

// RecentResources returns the latest resources added by teachers.
func (c *Client) RecentResources(ctx context.Context) ([]learning.Resource, error) {
	return getList[learning.Resource](ctx, c, "apiclient.RecentResources", "/api/recommendation/recent", "resources")
}

func (c *Client) SubmitRecommendationFeedback(ctx context.Context, form learning.RecommendationFeedbackForm) error {
	_, err := c.do(ctx, "apiclient.SubmitRecommendationFeedback", http.MethodPost, "/api/recommendation/feedback", form)
	return err
}

// UpdateGoalStatus only changes a goal's status; the rest of the goal is left as it is.
func (c *Client) UpdateGoalStatus(ctx context.Context, goalID string, form learning.GoalStatusForm) error {
	path := "/api/goals/" + url.PathEscape(goalID) + "/status"
	_, err := c.do(ctx, "apiclient.UpdateGoalStatus", http.MethodPut, path, form)
	return err
}

// RespondFeedback stores a teacher's response to a student's feedback.
func (c *Client) RespondFeedback(ctx context.Context, feedbackID string, form learning.RespondForm) error {
	path := "/api/feedback/" + url.PathEscape(feedbackID) + "/respond"
	_, err := c.do(ctx, "apiclient.RespondFeedback", http.MethodPost, path, form)
	return err
}

// Per student views for teachers

func (c *Client) StudentGoals(ctx context.Context, studentID string) ([]learning.Goal, error) {
	return getList[learning.Goal](ctx, c, "apiclient.StudentGoals", studentPath(studentID, "goals"), "goals")
}

func (c *Client) StudentActivities(ctx context.Context, studentID string) ([]learning.Activity, error) {
	return getList[learning.Activity](ctx, c, "apiclient.StudentActivities", studentPath(studentID, "activities"), "activities")
}

func (c *Client) StudentFeedback(ctx context.Context, studentID string) ([]learning.Feedback, error) {
	return getList[learning.Feedback](ctx, c, "apiclient.StudentFeedback", studentPath(studentID, "feedbacks"), "feedbacks")
}

// ReplyFeedback answers one of the student's feedbacks from the student's page.
func (c *Client) ReplyFeedback(ctx context.Context, studentID, feedbackID string, form learning.ReplyForm) error {
	path := studentPath(studentID, "feedback", url.PathEscape(feedbackID), "reply")
	_, err := c.do(ctx, "apiclient.ReplyFeedback", http.MethodPost, path, form)
	return err
}

// Administration

// Teachers lists the accounts that can be put in charge of a class.
func (c *Client) Teachers(ctx context.Context) ([]user.User, error) {
	return getList[user.User](ctx, c, "apiclient.Teachers", "/api/admin/teachers", "teachers")
}

func (c *Client) AssignTeacher(ctx context.Context, form learning.AssignTeacherForm) error {
	_, err := c.do(ctx, "apiclient.AssignTeacher", http.MethodPost, "/api/admin/class/assignTeacher", form)
	return err
}

// Progress

// Progress is the current student's progress summary.
func (c *Client) Progress(ctx context.Context) (learning.Progress, error) {
	const op = "apiclient.Progress"
	env, err := c.get(ctx, op, "/api/progress")
	if err != nil {
		return learning.Progress{}, err
	}
	var progress learning.Progress
	if err := env.decode("progress", &progress); err != nil {
		return learning.Progress{}, &TransportError{Op: op, Err: err}
	}
	return progress, nil
}

// UpdateProgress records the progress of one of the current student's activities.
func (c *Client) UpdateProgress(ctx context.Context, form learning.ProgressForm) error {
	_, err := c.do(ctx, "apiclient.UpdateProgress", http.MethodPut, "/api/progress/update", form)
	return err
}
