package echoweb

import (
	"context"
	"strconv"

	"github.com/trezcool/learnlog/core/learning"
	"github.com/trezcool/learnlog/core/user"
	"github.com/trezcool/learnlog/services/apiclient"
)

func studentScreens() []screen {
	return []screen{
		dashboardScreen(),
		studentGoals().screen("goals", "Goals"),
		studentActivities().screen("activities", "Activities", registerProgress),
		{key: "resources", label: "Resources", register: registerStudentResources},
		{key: "recommendations", label: "Recommendations", register: registerRecommendations},
		studentFeedback().screen("feedback", "Feedback"),
		analyticsScreen(),
		{key: "profile", label: "Profile", register: registerProfile},
	}
}

func teacherScreens() []screen {
	return []screen{
		dashboardScreen(),
		teacherStudents().screen("students", "Students", registerStudentDetail),
		teacherGoals().screen("goals", "Goals"),
		teacherActivities().screen("activities", "Activities"),
		teacherResources().screen("resources", "Resources"),
		teacherFeedback().screen("feedback", "Feedback"),
		analyticsScreen(),
	}
}

func adminScreens() []screen {
	return []screen{
		dashboardScreen(),
		adminUsers().screen("users", "Users"),
		adminClasses().screen("classes", "Classes", registerAssignTeacher),
		analyticsScreen(),
		{key: "settings", label: "Settings", register: registerSettings},
	}
}

func options(values ...string) []option {
	opts := make([]option, 0, len(values))
	for _, v := range values {
		opts = append(opts, option{Value: v, Label: titleCase(v)})
	}
	return opts
}

func itoa(i int64) string {
	if i == 0 {
		return ""
	}
	return strconv.FormatInt(i, 10)
}

var priorityOptions = []option{
	{Value: "1", Label: "High"},
	{Value: "2", Label: "Medium"},
	{Value: "3", Label: "Low"},
}

// Goals

var goalColumns = []column[learning.Goal]{
	{Label: "Goal", Value: func(g learning.Goal) string { return g.Name }},
	{Label: "Description", Value: func(g learning.Goal) string { return g.Description }},
	{Label: "Due", Value: func(g learning.Goal) string { return g.DueDate.String() }},
	{Label: "Priority", Value: func(g learning.Goal) string { return learning.PriorityLabel(g.Priority) }},
	{Label: "Status", Value: func(g learning.Goal) string { return g.Status }},
}

func studentGoals() *crudScreen[learning.Goal, learning.GoalForm] {
	return &crudScreen[learning.Goal, learning.GoalForm]{
		title:   "My goals",
		noun:    "goal",
		columns: goalColumns,
		fields: []field{
			{Name: "goalName", Label: "Goal", Type: "text"},
			{Name: "goalDescription", Label: "Description", Type: "textarea"},
			{Name: "dueDate", Label: "Due date", Type: "date"},
			{Name: "priority", Label: "Priority", Type: "select", Options: priorityOptions},
			{Name: "status", Label: "Status", Type: "select", Options: options(learning.GoalStatuses...)},
		},
		id: learning.Goal.Key,
		values: func(f learning.GoalForm) map[string]string {
			return map[string]string{
				"goalName":        f.Name,
				"goalDescription": f.Description,
				"dueDate":         f.DueDate,
				"priority":        strconv.Itoa(f.Priority),
				"status":          f.Status,
			}
		},
		toForm: learning.GoalFormFrom,
		validate: func(s *server, f *learning.GoalForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Goal, error) {
			return c.Goals().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f learning.GoalForm) error {
			return c.Goals().Create(ctx, f.Goal())
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.GoalForm) error {
			return c.Goals().Update(ctx, id, f.Goal())
		},
		remove: func(ctx context.Context, c *apiclient.Client, id string) error {
			return c.Goals().Delete(ctx, id)
		},
	}
}

// teacherGoals lets teachers follow their students' goals and move their status along.
func teacherGoals() *crudScreen[learning.Goal, learning.GoalStatusForm] {
	return &crudScreen[learning.Goal, learning.GoalStatusForm]{
		title: "Student goals",
		noun:  "goal",
		columns: append([]column[learning.Goal]{
			{Label: "Student", Value: func(g learning.Goal) string { return itoa(g.StudentID) }},
		}, goalColumns...),
		fields: []field{
			{Name: "status", Label: "Status", Type: "select", Options: options(learning.GoalStatuses...)},
		},
		id:     learning.Goal.Key,
		values: func(f learning.GoalStatusForm) map[string]string { return map[string]string{"status": f.Status} },
		toForm: learning.GoalStatusFormFrom,
		validate: func(s *server, f *learning.GoalStatusForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Goal, error) {
			return c.Goals().List(ctx)
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.GoalStatusForm) error {
			return c.UpdateGoalStatus(ctx, id, f)
		},
	}
}

// Activities

var activityColumns = []column[learning.Activity]{
	{Label: "Activity", Value: func(a learning.Activity) string { return a.Name }},
	{Label: "Type", Value: func(a learning.Activity) string { return a.Type }},
	{Label: "Start", Value: func(a learning.Activity) string { return a.StartTime.String() }},
	{Label: "End", Value: func(a learning.Activity) string { return a.EndTime.String() }},
	{Label: "Description", Value: func(a learning.Activity) string { return a.Description }},
}

func studentActivities() *crudScreen[learning.Activity, learning.ActivityForm] {
	return &crudScreen[learning.Activity, learning.ActivityForm]{
		title:   "My activities",
		noun:    "activity",
		columns: activityColumns,
		fields: []field{
			{Name: "activityName", Label: "Activity", Type: "text"},
			{Name: "activityType", Label: "Type", Type: "select", Options: options(learning.ActivityTypes...)},
			{Name: "startTime", Label: "Start", Type: "datetime-local"},
			{Name: "endTime", Label: "End", Type: "datetime-local"},
			{Name: "description", Label: "Description", Type: "textarea"},
		},
		id:      learning.Activity.Key,
		actions: []rowAction{{Label: "Progress", Suffix: "/progress"}},
		values: func(f learning.ActivityForm) map[string]string {
			return map[string]string{
				"activityName": f.Name,
				"activityType": f.Type,
				"startTime":    f.StartTime,
				"endTime":      f.EndTime,
				"description":  f.Description,
			}
		},
		toForm: learning.ActivityFormFrom,
		validate: func(s *server, f *learning.ActivityForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Activity, error) {
			return c.Activities().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f learning.ActivityForm) error {
			return c.Activities().Create(ctx, f.Activity())
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.ActivityForm) error {
			return c.Activities().Update(ctx, id, f.Activity())
		},
		remove: func(ctx context.Context, c *apiclient.Client, id string) error {
			return c.Activities().Delete(ctx, id)
		},
	}
}

// teacherActivities is a read-only view of the students' activities.
func teacherActivities() *crudScreen[learning.Activity, learning.ActivityForm] {
	return &crudScreen[learning.Activity, learning.ActivityForm]{
		title: "Student activities",
		noun:  "activity",
		columns: append([]column[learning.Activity]{
			{Label: "Student", Value: func(a learning.Activity) string { return itoa(a.StudentID) }},
		}, activityColumns...),
		id: learning.Activity.Key,
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Activity, error) {
			return c.Activities().List(ctx)
		},
	}
}

// Resources

func teacherResources() *crudScreen[learning.Resource, learning.ResourceForm] {
	return &crudScreen[learning.Resource, learning.ResourceForm]{
		title: "Resources",
		noun:  "resource",
		columns: []column[learning.Resource]{
			{Label: "Resource", Value: func(r learning.Resource) string { return r.Name }},
			{Label: "Type", Value: func(r learning.Resource) string { return r.Type }},
			{Label: "Description", Value: func(r learning.Resource) string { return r.Description }},
			{Label: "Link", Value: func(r learning.Resource) string { return r.URL }},
		},
		fields: []field{
			{Name: "resourceName", Label: "Resource", Type: "text"},
			{Name: "resourceType", Label: "Type", Type: "select", Options: options(learning.ResourceTypes...)},
			{Name: "description", Label: "Description", Type: "textarea"},
			{Name: "resourceUrl", Label: "Link", Type: "url"},
		},
		id: learning.Resource.Key,
		values: func(f learning.ResourceForm) map[string]string {
			return map[string]string{
				"resourceName": f.Name,
				"resourceType": f.Type,
				"description":  f.Description,
				"resourceUrl":  f.URL,
			}
		},
		toForm: learning.ResourceFormFrom,
		validate: func(s *server, f *learning.ResourceForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Resource, error) {
			return c.Resources().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f learning.ResourceForm) error {
			return c.Resources().Create(ctx, f.Resource())
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.ResourceForm) error {
			return c.Resources().Update(ctx, id, f.Resource())
		},
		remove: func(ctx context.Context, c *apiclient.Client, id string) error {
			return c.Resources().Delete(ctx, id)
		},
	}
}

// Feedback

var feedbackColumns = []column[learning.Feedback]{
	{Label: "Date", Value: func(f learning.Feedback) string { return f.Timestamp.String() }},
	{Label: "Feedback", Value: func(f learning.Feedback) string { return f.Content }},
	{Label: "Response", Value: func(f learning.Feedback) string { return f.Response }},
}

// studentFeedback lets students write to their teachers and read the answers.
func studentFeedback() *crudScreen[learning.Feedback, learning.FeedbackForm] {
	return &crudScreen[learning.Feedback, learning.FeedbackForm]{
		title:   "Feedback",
		noun:    "feedback",
		columns: feedbackColumns,
		fields: []field{
			{Name: "feedback", Label: "Your feedback", Type: "textarea"},
		},
		id:     learning.Feedback.Key,
		values: func(f learning.FeedbackForm) map[string]string { return map[string]string{"feedback": f.Content} },
		validate: func(s *server, f *learning.FeedbackForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Feedback, error) {
			return c.Feedback().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f learning.FeedbackForm) error {
			return c.Feedback().Create(ctx, f.Feedback())
		},
	}
}

// teacherFeedback lists the students' feedback; updating an item responds to it.
func teacherFeedback() *crudScreen[learning.Feedback, learning.RespondForm] {
	return &crudScreen[learning.Feedback, learning.RespondForm]{
		title: "Student feedback",
		noun:  "response",
		columns: append([]column[learning.Feedback]{
			{Label: "Student", Value: func(f learning.Feedback) string { return itoa(f.StudentID) }},
		}, feedbackColumns...),
		fields: []field{
			{Name: "response", Label: "Response", Type: "textarea"},
		},
		id:     learning.Feedback.Key,
		values: func(f learning.RespondForm) map[string]string { return map[string]string{"response": f.Response} },
		toForm: learning.RespondFormFrom,
		validate: func(s *server, f *learning.RespondForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Feedback, error) {
			return c.Feedback().List(ctx)
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.RespondForm) error {
			return c.RespondFeedback(ctx, id, f)
		},
	}
}

// Students

func teacherStudents() *crudScreen[learning.Student, learning.StudentForm] {
	return &crudScreen[learning.Student, learning.StudentForm]{
		title: "Students",
		noun:  "student",
		columns: []column[learning.Student]{
			{Label: "Student no.", Value: func(s learning.Student) string { return s.StudentNo }},
			{Label: "Name", Value: func(s learning.Student) string { return s.Name }},
			{Label: "Username", Value: func(s learning.Student) string { return s.Username }},
			{Label: "Email", Value: func(s learning.Student) string { return s.Email }},
			{Label: "Grade", Value: func(s learning.Student) string { return s.Grade }},
			{Label: "Major", Value: func(s learning.Student) string { return s.Major }},
			{Label: "Status", Value: func(s learning.Student) string { return s.Status }},
		},
		fields: []field{
			{Name: "username", Label: "Username", Type: "text"},
			{Name: "name", Label: "Name", Type: "text"},
			{Name: "email", Label: "Email", Type: "email"},
			{Name: "studentId", Label: "Student no.", Type: "text"},
			{Name: "grade", Label: "Grade", Type: "text"},
			{Name: "major", Label: "Major", Type: "text"},
			{Name: "status", Label: "Status", Type: "select", Options: options(user.StatusActive, user.StatusInactive)},
		},
		id:      learning.Student.Key,
		actions: []rowAction{{Label: "Open"}},
		values: func(f learning.StudentForm) map[string]string {
			return map[string]string{
				"username":  f.Username,
				"name":      f.Name,
				"email":     f.Email,
				"studentId": f.StudentNo,
				"grade":     f.Grade,
				"major":     f.Major,
				"status":    f.Status,
			}
		},
		toForm: learning.StudentFormFrom,
		validate: func(s *server, f *learning.StudentForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Student, error) {
			return c.Students().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f learning.StudentForm) error {
			return c.Students().Create(ctx, f.Student())
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.StudentForm) error {
			return c.Students().Update(ctx, id, f.Student())
		},
		remove: func(ctx context.Context, c *apiclient.Client, id string) error {
			return c.Students().Delete(ctx, id)
		},
	}
}

// Users

func adminUsers() *crudScreen[user.User, user.UserForm] {
	return &crudScreen[user.User, user.UserForm]{
		title: "Users",
		noun:  "user",
		columns: []column[user.User]{
			{Label: "ID", Value: func(u user.User) string { return itoa(u.ID) }},
			{Label: "Username", Value: func(u user.User) string { return u.Username }},
			{Label: "Name", Value: func(u user.User) string { return u.Name }},
			{Label: "Role", Value: func(u user.User) string { return u.Role }},
			{Label: "Status", Value: func(u user.User) string { return u.Status }},
		},
		fields: []field{
			{Name: "username", Label: "Username", Type: "text"},
			{Name: "name", Label: "Name", Type: "text"},
			{Name: "password", Label: "Password", Type: "password"},
			{Name: "role", Label: "Role", Type: "select", Options: options("student", "teacher", "admin")},
			{Name: "status", Label: "Status", Type: "select", Options: options(user.StatusActive, user.StatusInactive)},
		},
		id: user.User.Key,
		values: func(f user.UserForm) map[string]string {
			return map[string]string{"username": f.Username, "name": f.Name, "role": f.Role, "status": f.Status}
		},
		toForm: user.FromUser,
		validate: func(s *server, f *user.UserForm, creating bool) error {
			return f.Validate(s.deps.Validate, creating)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]user.User, error) {
			return c.Users().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f user.UserForm) error {
			return c.Users().Create(ctx, f)
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f user.UserForm) error {
			return c.Users().Update(ctx, id, f)
		},
		remove: func(ctx context.Context, c *apiclient.Client, id string) error {
			return c.Users().Delete(ctx, id)
		},
	}
}

// Classes

func adminClasses() *crudScreen[learning.Class, learning.ClassForm] {
	return &crudScreen[learning.Class, learning.ClassForm]{
		title: "Classes",
		noun:  "class",
		columns: []column[learning.Class]{
			{Label: "Class", Value: func(c learning.Class) string { return c.Name }},
			{Label: "Description", Value: func(c learning.Class) string { return c.Description }},
			{Label: "Teacher", Value: func(c learning.Class) string { return itoa(c.TeacherID) }},
			{Label: "Status", Value: func(c learning.Class) string { return c.Status }},
		},
		fields: []field{
			{Name: "className", Label: "Class", Type: "text"},
			{Name: "description", Label: "Description", Type: "textarea"},
			{Name: "teacherId", Label: "Teacher ID", Type: "number"},
			{Name: "status", Label: "Status", Type: "select", Options: options(user.StatusActive, user.StatusInactive)},
		},
		id:      learning.Class.Key,
		actions: []rowAction{{Label: "Assign teacher", Suffix: "/teacher"}},
		values: func(f learning.ClassForm) map[string]string {
			return map[string]string{
				"className":   f.Name,
				"description": f.Description,
				"teacherId":   itoa(f.TeacherID),
				"status":      f.Status,
			}
		},
		toForm: learning.ClassFormFrom,
		validate: func(s *server, f *learning.ClassForm, _ bool) error {
			return f.Validate(s.deps.Validate)
		},
		list: func(ctx context.Context, c *apiclient.Client) ([]learning.Class, error) {
			return c.Classes().List(ctx)
		},
		create: func(ctx context.Context, c *apiclient.Client, f learning.ClassForm) error {
			return c.Classes().Create(ctx, f.Class())
		},
		update: func(ctx context.Context, c *apiclient.Client, id string, f learning.ClassForm) error {
			return c.Classes().Update(ctx, id, f.Class())
		},
		remove: func(ctx context.Context, c *apiclient.Client, id string) error {
			return c.Classes().Delete(ctx, id)
		},
	}
}
