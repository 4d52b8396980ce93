package user

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/core/session"
)

// Account statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Info is the identity the backend reports for a token.
type Info struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
}

func (i Info) ParsedRole() session.Role {
	return session.ParseRole(i.Role)
}

// ErrNoDisplayName is returned when the backend identifies an account by neither name nor username.
var ErrNoDisplayName = errors.New("backend reported neither a name nor a username")

// DisplayName falls back to the username when the backend has no name on file.
func (i Info) DisplayName() string {
	if name := core.CleanString(i.Name); name != "" {
		return name
	}
	return core.CleanString(i.Username)
}

// Session builds the session triple for a freshly authenticated token.
// All three values must be known: an empty token or display name is an error.
func (i Info) Session(token string) (session.Session, error) {
	sess := session.Session{Token: token, Role: i.ParsedRole().String(), DisplayName: i.DisplayName()}
	if sess.Token == "" {
		return session.Session{}, errors.New("no token to store")
	}
	if sess.DisplayName == "" {
		return session.Session{}, ErrNoDisplayName
	}
	return sess, nil
}

// User is an account as managed by administrators.
type User struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	Status   string `json:"status,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u User) Key() string { return strconv.FormatInt(u.ID, 10) }

// LoginResult is what the backend returns on a successful login. Role may be missing.
type LoginResult struct {
	Token string `json:"token"`
	Role  string `json:"role,omitempty"`
}

type LoginForm struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (f *LoginForm) Validate(validate *validator.Validate) error {
	f.Username = core.CleanString(f.Username)
	return validate.Struct(f)
}

// RegisterForm is the self-service sign up form. Only students and teachers may register.
type RegisterForm struct {
	Username        string `json:"username" form:"username" validate:"required,min=3,alphanum_"`
	Password        string `json:"password" form:"password" validate:"required"`
	PasswordConfirm string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
	Role            string `json:"role" form:"role" validate:"required,oneof=student teacher"`
	Avatar          string `json:"avatar,omitempty" form:"avatar" validate:"omitempty,url"`
}

func (f *RegisterForm) Validate(validate *validator.Validate) error {
	f.Username = core.CleanString(f.Username, true /* lower */)
	f.Role = core.CleanString(f.Role, true /* lower */)
	f.Avatar = core.CleanString(f.Avatar)
	return validate.Struct(f)
}

// UserForm is used by administrators to create or update an account.
// Password is only required on create.
type UserForm struct {
	Username string `json:"username" form:"username" validate:"required,min=3,alphanum_"`
	Name     string `json:"name,omitempty" form:"name"`
	Password string `json:"password,omitempty" form:"password"`
	Role     string `json:"role" form:"role" validate:"required,oneof=student teacher admin"`
	Status   string `json:"status" form:"status" validate:"required,oneof=active inactive"`
}

func (f *UserForm) Validate(validate *validator.Validate, creating bool) error {
	f.Username = core.CleanString(f.Username, true /* lower */)
	f.Name = core.CleanString(f.Name)
	f.Role = core.CleanString(f.Role, true /* lower */)
	f.Status = core.CleanString(f.Status, true /* lower */)

	if err := validate.Struct(f); err != nil {
		return err
	}
	if creating && f.Password == "" {
		return core.NewValidationError(errPasswordRequired, core.FieldError{Field: "password", Error: errPasswordRequired.Error()})
	}
	return nil
}

// FromUser prefills the form for an update.
func FromUser(u User) UserForm {
	return UserForm{Username: u.Username, Name: u.Name, Role: u.Role, Status: u.Status}
}

// ProfileForm updates the current user's own profile.
type ProfileForm struct {
	Avatar string `json:"avatar" form:"avatar" validate:"required,url"`
}

func (f *ProfileForm) Validate(validate *validator.Validate) error {
	f.Avatar = core.CleanString(f.Avatar)
	return validate.Struct(f)
}
