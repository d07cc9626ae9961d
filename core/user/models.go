package user

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/thesisflow/core"
)

// Roles
const (
	// Admin
	RoleAdmin         = "admin:"
	RoleAdminOwner    = "admin:owner"
	RoleAdminExaminer = "admin:examiner" // examination office: confirms thesis registrations

	// Tutor
	RoleTutor = "tutor:"

	// Student
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminExaminer}
	TutorRoles   = []string{RoleTutor}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner:    30,
		RoleAdminExaminer: 25,
		RoleAdmin:         21,

		// Tutors: 20 - 11
		RoleTutor: 11,

		// Students: 10 - 1
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Tutor", Value: RoleTutor},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Examiner", Value: RoleAdminExaminer},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 5)
	all = append(all, AdminRoles...)
	all = append(all, TutorRoles...)
	all = append(all, StudentRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) HasAnyRole(roles ...string) bool {
	for _, role := range u.Roles {
		for _, r := range roles {
			if role == r {
				return true
			}
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

// IsExaminer tells whether the user may confirm thesis registrations.
func (u *User) IsExaminer() bool {
	return u.HasAnyRole(RoleAdminExaminer, RoleAdminOwner)
}

func (u *User) IsTutor() bool {
	return u.RoleStartsWith(RoleTutor)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// MailAddress is the address notifications are sent to; it is empty for users without email.
func (u *User) MailAddress() mail.Address {
	if u.Email == "" {
		return mail.Address{}
	}
	return mail.Address{Name: u.Name, Address: u.Email}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"required,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

type ResetUserPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter selects exactly one user. Fields are tried in order: ID, Username, Email, UsernameOrEmail.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
