package thesis

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
	"github.com/trezcool/thesisflow/core/workflow"
)

// BillingStatus is an independent tag; any value may follow any other.
type BillingStatus string

const (
	Unbilled BillingStatus = "UNBILLED"
	Billed   BillingStatus = "BILLED"
	Paid     BillingStatus = "PAID"
)

var BillingStatuses = []BillingStatus{Unbilled, Billed, Paid}

func (bs BillingStatus) IsValid() bool {
	for _, s := range BillingStatuses {
		if s == bs {
			return true
		}
	}
	return false
}

// RequestState is the state of a supervision request.
type RequestState string

const (
	RequestPending  RequestState = "PENDING"
	RequestAccepted RequestState = "ACCEPTED"
	RequestRejected RequestState = "REJECTED"
)

var RequestStates = []RequestState{RequestPending, RequestAccepted, RequestRejected}

func (rs RequestState) IsValid() bool {
	for _, s := range RequestStates {
		if s == rs {
			return true
		}
	}
	return false
}

type Thesis struct {
	ID                      string          `json:"id"`
	Title                   string          `json:"title"`
	Description             string          `json:"description"`
	StudentID               string          `json:"student_id"`
	TutorID                 string          `json:"tutor_id,omitempty"`
	Status                  workflow.Status `json:"status"`
	BillingStatus           BillingStatus   `json:"billing_status"`
	RegistrationConfirmedAt *time.Time      `json:"registration_confirmed_at"` // UTC
	CreatedAt               time.Time       `json:"created_at"`                // UTC
	UpdatedAt               time.Time       `json:"updated_at"`                // UTC
}

func (th Thesis) RegistrationConfirmed() bool {
	return th.RegistrationConfirmedAt != nil && !th.RegistrationConfirmedAt.IsZero()
}

type SupervisionRequest struct {
	ID         string       `json:"id"`
	ThesisID   string       `json:"thesis_id"`
	StudentID  string       `json:"student_id"`
	TutorID    string       `json:"tutor_id"`
	State      RequestState `json:"state"`
	Message    string       `json:"message"`
	CreatedAt  time.Time    `json:"created_at"`  // UTC
	DecidedAt  *time.Time   `json:"decided_at"`  // UTC
	RemindedAt *time.Time   `json:"reminded_at"` // UTC
}

// IsOpen reports whether the request still counts for its thesis. A rejected request frees the
// thesis for a new one.
func (r SupervisionRequest) IsOpen() bool {
	return r.State == RequestPending || r.State == RequestAccepted
}

// Detail is a thesis as seen by one actor.
type Detail struct {
	Thesis
	StatusLabel        string              `json:"status_label"`
	SupervisionRequest *SupervisionRequest `json:"supervision_request"`
	StatusPlan         workflow.Decision   `json:"status_plan"`
}

// NewSnapshot builds the workflow view of a thesis; latest is its most recent supervision request, if any.
func NewSnapshot(th Thesis, latest *SupervisionRequest) workflow.Snapshot {
	snap := workflow.Snapshot{
		Status:  th.Status,
		TutorID: th.TutorID,
	}
	if latest != nil && latest.IsOpen() {
		snap.HasSupervisionRequest = true
		snap.IsSupervisionRequestAccepted = latest.State == RequestAccepted
	}
	return snap
}

// ActorRole is the workflow role usr plays towards th. Admins play no part in the workflow.
func ActorRole(th Thesis, latest *SupervisionRequest, usr user.User) workflow.Role {
	switch {
	case usr.ID == "":
		return workflow.RoleOther
	case usr.ID == th.StudentID:
		return workflow.RoleStudent
	case usr.ID == th.TutorID:
		return workflow.RoleTutor
	case th.TutorID == "" && latest != nil && latest.State == RequestPending && usr.ID == latest.TutorID:
		return workflow.RoleTutor
	default:
		return workflow.RoleOther
	}
}

// CanView reports whether usr may see th at all.
func CanView(th Thesis, latest *SupervisionRequest, usr user.User) bool {
	return usr.IsAdmin() || ActorRole(th, latest, usr) != workflow.RoleOther
}

// Planner returns the workflow planner for th, backed by its registration confirmation.
func Planner(th Thesis) workflow.Planner {
	return workflow.NewPlanner(workflow.ConfirmerFunc(func(workflow.Snapshot) bool {
		return th.RegistrationConfirmed()
	}))
}

// NewThesis contains information needed to create a new Thesis.
type NewThesis struct {
	Title       string `json:"title" validate:"required,notblank,max=255"`
	Description string `json:"description" validate:"max=5000"`
}

func (nt *NewThesis) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

// UpdateThesis defines what the owning student may change. Nil fields are left as they are.
type UpdateThesis struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (ut *UpdateThesis) Validate(validate *validator.Validate) error {
	if ut.Title != nil {
		title := core.CleanString(*ut.Title)
		ut.Title = &title
	}
	if ut.Description != nil {
		desc := core.CleanString(*ut.Description)
		ut.Description = &desc
	}
	return validate.Struct(ut)
}

type UpdateStatus struct {
	Status string `json:"status" validate:"required,thesis_status"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status)
	return validate.Struct(us)
}

type UpdateBillingStatus struct {
	BillingStatus string `json:"billing_status" validate:"required,billing_status"`
}

func (ub *UpdateBillingStatus) Validate(validate *validator.Validate) error {
	ub.BillingStatus = core.CleanString(ub.BillingStatus)
	return validate.Struct(ub)
}

type NewSupervisionRequest struct {
	TutorID string `json:"tutor_id" validate:"required"`
	Message string `json:"message" validate:"max=2000"`
}

func (nr *NewSupervisionRequest) Validate(validate *validator.Validate) error {
	nr.TutorID = core.CleanString(nr.TutorID)
	nr.Message = core.CleanString(nr.Message)
	return validate.Struct(nr)
}

type QueryFilter struct {
	Search          string   `query:"search"`
	Statuses        []string `query:"status" validate:"omitempty,dive,thesis_status"`
	BillingStatuses []string `query:"billing_status" validate:"omitempty,dive,billing_status"`
	StudentID       string   `query:"student_id"`
	TutorID         string   `query:"tutor_id"`
	// ParticipantID matches theses the user owns or supervises.
	ParticipantID string `query:"-"`
}

func (qf *QueryFilter) Validate(validate *validator.Validate) error {
	qf.Search = core.CleanString(qf.Search)
	return validate.Struct(qf)
}

type RequestFilter struct {
	ThesisID  string   `query:"thesis_id"`
	StudentID string   `query:"-"`
	TutorID   string   `query:"-"`
	States    []string `query:"state" validate:"omitempty,dive,request_state"`
	// CreatedBefore & RemindedBefore select stale requests; requests never reminded match RemindedBefore.
	CreatedBefore  time.Time `query:"-"`
	RemindedBefore time.Time `query:"-"`
}

func (rf *RequestFilter) Validate(validate *validator.Validate) error {
	return validate.Struct(rf)
}
