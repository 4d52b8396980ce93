// Package learning holds the payloads of the learning backend: goals, activities, resources, feedback,
// recommendations, classes and students, with the forms that create and update them.
package learning

import "strconv"

// Goal statuses
const (
	GoalNotStarted = "not_started"
	GoalPending    = "pending"
	GoalInProgress = "in_progress"
	GoalCompleted  = "completed"
)

// Goal priorities
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

var (
	ActivityTypes = []string{"course", "competition", "project", "other"}
	ResourceTypes = []string{"course", "article", "teaching", "research"}
	FeedbackTypes = []string{"praise", "suggestion", "warning"}
	GoalStatuses  = []string{GoalNotStarted, GoalPending, GoalInProgress, GoalCompleted}
)

func PriorityLabel(p int) string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "-"
	}
}

type Goal struct {
	ID          int64     `json:"id,omitempty"`
	StudentID   int64     `json:"studentId,omitempty"`
	Name        string    `json:"goalName"`
	Description string    `json:"goalDescription,omitempty"`
	DueDate     Timestamp `json:"dueDate"`
	Status      string    `json:"status,omitempty"`
	Priority    int       `json:"priority,omitempty"`
}

type Activity struct {
	ID          int64     `json:"id,omitempty"`
	StudentID   int64     `json:"studentId,omitempty"`
	Name        string    `json:"activityName"`
	Type        string    `json:"activityType"`
	StartTime   Timestamp `json:"startTime"`
	EndTime     Timestamp `json:"endTime"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
}

// Hours is the activity's duration, 0 when either bound is missing.
func (a Activity) Hours() float64 {
	if a.StartTime.IsZero() || a.EndTime.IsZero() || a.EndTime.Before(a.StartTime.Time) {
		return 0
	}
	return a.EndTime.Sub(a.StartTime.Time).Hours()
}

type Resource struct {
	ID          int64   `json:"id,omitempty"`
	Name        string  `json:"resourceName"`
	Type        string  `json:"resourceType"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"resourceUrl,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
}

type Feedback struct {
	ID           int64     `json:"id,omitempty"`
	StudentID    int64     `json:"studentId,omitempty"`
	TeacherID    int64     `json:"teacherId,omitempty"`
	Content      string    `json:"feedback"`
	Type         string    `json:"type,omitempty"`
	Response     string    `json:"response,omitempty"`
	Timestamp    Timestamp `json:"timestamp"`
	ResponseTime Timestamp `json:"responseTime"`
}

func (f Feedback) Answered() bool {
	return f.Response != ""
}

type Class struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"className"`
	Description string `json:"description,omitempty"`
	TeacherID   int64  `json:"teacherId,omitempty"`
	Status      string `json:"status,omitempty"`
}

type Student struct {
	ID        int64  `json:"id,omitempty"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	StudentNo string `json:"studentId,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Major     string `json:"major,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Recommendation is a resource suggested to the current student.
type Recommendation struct {
	ResourceID  int64   `json:"resourceId"`
	Name        string  `json:"resourceName"`
	Type        string  `json:"resourceType,omitempty"`
	Description string  `json:"description,omitempty"`
	URL         string  `json:"resourceUrl,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// Progress summarises the current student's goals and activities.
type Progress struct {
	OverallProgress     int              `json:"overallProgress"`
	TotalActivities     int              `json:"totalActivities"`
	CompletedActivities int              `json:"completedActivities"`
	TotalGoals          int              `json:"totalGoals"`
	CompletedGoals      int              `json:"completedGoals"`
	RecentActivities    []RecentActivity `json:"recentActivities,omitempty"`
}

type RecentActivity struct {
	ID        int64     `json:"id,omitempty"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
	Status    string    `json:"status"`
}

// ID helpers used by the generic screens.

func (g Goal) Key() string     { return strconv.FormatInt(g.ID, 10) }
func (a Activity) Key() string { return strconv.FormatInt(a.ID, 10) }
func (r Resource) Key() string { return strconv.FormatInt(r.ID, 10) }
func (f Feedback) Key() string { return strconv.FormatInt(f.ID, 10) }
func (c Class) Key() string    { return strconv.FormatInt(c.ID, 10) }
func (s Student) Key() string  { return strconv.FormatInt(s.ID, 10) }
