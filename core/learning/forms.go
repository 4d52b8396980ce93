package learning

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnlog/core"
)

var (
	endBeforeStartTag  = "endafterstart"
	endBeforeStartText = "end time cannot be before start time"
)

// InitValidators registers the struct validators of this package.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(activityStructValidation, ActivityForm{})
	core.RegisterCustomTranslation(validate, translator, endBeforeStartTag, endBeforeStartText)
}

// activityStructValidation checks that an activity does not end before it starts.
func activityStructValidation(sl validator.StructLevel) {
	form := sl.Current().Interface().(ActivityForm)
	start, err1 := ParseTimestamp(form.StartTime)
	end, err2 := ParseTimestamp(form.EndTime)
	if err1 != nil || err2 != nil || start.IsZero() || end.IsZero() {
		return
	}
	if end.Before(start.Time) {
		sl.ReportError(form.EndTime, "endTime", "EndTime", endBeforeStartTag, "")
	}
}

type GoalForm struct {
	Name        string `json:"goalName" form:"goalName" validate:"required,max=100"`
	Description string `json:"goalDescription" form:"goalDescription" validate:"max=500"`
	DueDate     string `json:"dueDate" form:"dueDate" validate:"required,datetime=2006-01-02"`
	Priority    int    `json:"priority" form:"priority" validate:"required,min=1,max=3"`
	Status      string `json:"status" form:"status" validate:"omitempty,oneof=not_started pending in_progress completed"`
}

func (f *GoalForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.Description = core.CleanString(f.Description)
	f.Status = core.CleanString(f.Status, true /* lower */)
	return validate.Struct(f)
}

func (f GoalForm) Goal() Goal {
	due, _ := ParseTimestamp(f.DueDate)
	return Goal{Name: f.Name, Description: f.Description, DueDate: due, Priority: f.Priority, Status: f.Status}
}

func GoalFormFrom(g Goal) GoalForm {
	return GoalForm{Name: g.Name, Description: g.Description, DueDate: g.DueDate.Date(), Priority: g.Priority, Status: g.Status}
}

// GoalStatusForm is used by teachers to move a student's goal along.
type GoalStatusForm struct {
	Status string `json:"status" form:"status" validate:"required,oneof=not_started pending in_progress completed"`
}

func (f *GoalStatusForm) Validate(validate *validator.Validate) error {
	f.Status = core.CleanString(f.Status, true /* lower */)
	return validate.Struct(f)
}

func GoalStatusFormFrom(g Goal) GoalStatusForm { return GoalStatusForm{Status: g.Status} }

type ActivityForm struct {
	Name        string `json:"activityName" form:"activityName" validate:"required,max=100"`
	Type        string `json:"activityType" form:"activityType" validate:"required,oneof=course competition project other"`
	StartTime   string `json:"startTime" form:"startTime" validate:"required,datetime=2006-01-02T15:04"`
	EndTime     string `json:"endTime" form:"endTime" validate:"required,datetime=2006-01-02T15:04"`
	Description string `json:"description" form:"description" validate:"max=500"`
}

func (f *ActivityForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.Type = core.CleanString(f.Type, true /* lower */)
	f.Description = core.CleanString(f.Description)
	return validate.Struct(f)
}

func (f ActivityForm) Activity() Activity {
	start, _ := ParseTimestamp(f.StartTime)
	end, _ := ParseTimestamp(f.EndTime)
	return Activity{Name: f.Name, Type: f.Type, StartTime: start, EndTime: end, Description: f.Description}
}

func ActivityFormFrom(a Activity) ActivityForm {
	return ActivityForm{
		Name:        a.Name,
		Type:        a.Type,
		StartTime:   a.StartTime.DateTime(),
		EndTime:     a.EndTime.DateTime(),
		Description: a.Description,
	}
}

type ResourceForm struct {
	Name        string `json:"resourceName" form:"resourceName" validate:"required,max=100"`
	Type        string `json:"resourceType" form:"resourceType" validate:"required,oneof=course article teaching research"`
	Description string `json:"description" form:"description" validate:"max=500"`
	URL         string `json:"resourceUrl" form:"resourceUrl" validate:"omitempty,url"`
}

func (f *ResourceForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.Type = core.CleanString(f.Type, true /* lower */)
	f.Description = core.CleanString(f.Description)
	f.URL = core.CleanString(f.URL)
	return validate.Struct(f)
}

func (f ResourceForm) Resource() Resource {
	return Resource{Name: f.Name, Type: f.Type, Description: f.Description, URL: f.URL}
}

func ResourceFormFrom(r Resource) ResourceForm {
	return ResourceForm{Name: r.Name, Type: r.Type, Description: r.Description, URL: r.URL}
}

// FeedbackForm is a student's feedback to their teachers.
type FeedbackForm struct {
	Content string `json:"feedback" form:"feedback" validate:"required,max=1000"`
}

func (f *FeedbackForm) Validate(validate *validator.Validate) error {
	f.Content = core.CleanString(f.Content)
	return validate.Struct(f)
}

func (f FeedbackForm) Feedback() Feedback { return Feedback{Content: f.Content} }

// RespondForm is a teacher's answer to a piece of feedback.
type RespondForm struct {
	Response string `json:"response" form:"response" validate:"required,max=1000"`
}

func (f *RespondForm) Validate(validate *validator.Validate) error {
	f.Response = core.CleanString(f.Response)
	return validate.Struct(f)
}

func RespondFormFrom(fb Feedback) RespondForm { return RespondForm{Response: fb.Response} }

type ClassForm struct {
	Name        string `json:"className" form:"className" validate:"required,max=100"`
	Description string `json:"description" form:"description" validate:"max=500"`
	TeacherID   int64  `json:"teacherId" form:"teacherId" validate:"omitempty,min=1"`
	Status      string `json:"status" form:"status" validate:"required,oneof=active inactive"`
}

func (f *ClassForm) Validate(validate *validator.Validate) error {
	f.Name = core.CleanString(f.Name)
	f.Description = core.CleanString(f.Description)
	f.Status = core.CleanString(f.Status, true /* lower */)
	return validate.Struct(f)
}

func (f ClassForm) Class() Class {
	return Class{Name: f.Name, Description: f.Description, TeacherID: f.TeacherID, Status: f.Status}
}

func ClassFormFrom(c Class) ClassForm {
	return ClassForm{Name: c.Name, Description: c.Description, TeacherID: c.TeacherID, Status: c.Status}
}

type StudentForm struct {
	Username  string `json:"username" form:"username" validate:"required,min=3,alphanum_"`
	Name      string `json:"name" form:"name" validate:"required,max=100"`
	Email     string `json:"email" form:"email" validate:"omitempty,email"`
	StudentNo string `json:"studentId" form:"studentId" validate:"omitempty,alphanum"`
	Grade     string `json:"grade" form:"grade" validate:"max=20"`
	Major     string `json:"major" form:"major" validate:"max=100"`
	Status    string `json:"status" form:"status" validate:"required,oneof=active inactive"`
}

func (f *StudentForm) Validate(validate *validator.Validate) error {
	f.Username = core.CleanString(f.Username, true /* lower */)
	f.Name = core.CleanString(f.Name)
	f.Email = core.CleanString(f.Email, true /* lower */)
	f.StudentNo = core.CleanString(f.StudentNo)
	f.Grade = core.CleanString(f.Grade)
	f.Major = core.CleanString(f.Major)
	f.Status = core.CleanString(f.Status, true /* lower */)
	return validate.Struct(f)
}

func (f StudentForm) Student() Student {
	return Student{
		Username:  f.Username,
		Name:      f.Name,
		Email:     f.Email,
		StudentNo: f.StudentNo,
		Grade:     f.Grade,
		Major:     f.Major,
		Status:    f.Status,
	}
}

func StudentFormFrom(s Student) StudentForm {
	return StudentForm{
		Username:  s.Username,
		Name:      s.Name,
		Email:     s.Email,
		StudentNo: s.StudentNo,
		Grade:     s.Grade,
		Major:     s.Major,
		Status:    s.Status,
	}
}

// RateForm rates a resource from the student resource list.
type RateForm struct {
	Rating  int    `json:"rating" form:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" form:"comment" validate:"max=500"`
}

func (f *RateForm) Validate(validate *validator.Validate) error {
	f.Comment = core.CleanString(f.Comment)
	return validate.Struct(f)
}

// RecommendationFeedbackForm tells the backend whether a recommendation was useful.
type RecommendationFeedbackForm struct {
	ResourceID int64  `json:"resourceId" form:"resourceId" validate:"required,min=1"`
	Feedback   string `json:"feedback" form:"feedback" validate:"required,oneof=like dislike"`
	Rating     int    `json:"rating" form:"rating" validate:"omitempty,min=1,max=5"`
}

func (f *RecommendationFeedbackForm) Validate(validate *validator.Validate) error {
	f.Feedback = core.CleanString(f.Feedback, true /* lower */)
	return validate.Struct(f)
}

// ReplyForm is a teacher's reply to one of a student's feedbacks, sent from the student's page.
type ReplyForm struct {
	Content string `json:"feedback" form:"feedback" validate:"required,max=1000"`
}

func (f *ReplyForm) Validate(validate *validator.Validate) error {
	f.Content = core.CleanString(f.Content)
	return validate.Struct(f)
}

// AssignTeacherForm puts a teacher in charge of a class. ClassID comes from the url.
type AssignTeacherForm struct {
	ClassID   int64 `json:"classId" form:"-" validate:"required,min=1"`
	TeacherID int64 `json:"teacherId" form:"teacherId" validate:"required,min=1"`
}

func (f *AssignTeacherForm) Validate(validate *validator.Validate) error {
	return validate.Struct(f)
}

// ProgressForm records how far a student got in one of their activities, in percent.
type ProgressForm struct {
	ActivityID int64 `json:"activityId" form:"-" validate:"required,min=1"`
	Progress   int   `json:"progress" form:"progress" validate:"min=0,max=100"`
}

func (f *ProgressForm) Validate(validate *validator.Validate) error {
	return validate.Struct(f)
}
