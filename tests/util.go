// Package testutil holds fixtures shared by the tests of several packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/user"
	"github.com/trezcool/thesisflow/core/workflow"
)

// NewValidate returns a validator with every custom validation of the app registered.
func NewValidate() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	thesis.InitValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// ThesisOpts describe the state a fixture thesis is stored in.
type ThesisOpts struct {
	Tutor     user.User // bound tutor, if any
	Status    workflow.Status
	Confirmed bool                // registration confirmed
	Request   thesis.RequestState // state of its supervision request; none if empty
	RequestTo user.User           // addressee of the request; defaults to Tutor
	CreatedAt time.Time
}

// CreateThesis stores a thesis owned by student, optionally with a supervision request.
func CreateThesis(t *testing.T, repo thesis.Repository, student user.User, title string, opts ThesisOpts) (thesis.Thesis, *thesis.SupervisionRequest) {
	ctx := context.Background()

	tstamp := opts.CreatedAt
	if tstamp.IsZero() {
		tstamp = time.Now().UTC()
	}
	status := opts.Status
	if status == "" {
		status = workflow.InDiscussion
	}
	th := thesis.Thesis{
		Title:         title,
		StudentID:     student.ID,
		TutorID:       opts.Tutor.ID,
		Status:        status,
		BillingStatus: thesis.Unbilled,
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if opts.Confirmed {
		at := tstamp
		th.RegistrationConfirmedAt = &at
	}
	th, err := repo.CreateThesis(ctx, th)
	if err != nil {
		t.Fatalf("CreateThesis() failed: %v", err)
	}

	if opts.Request == "" {
		return th, nil
	}
	to := opts.RequestTo
	if to.ID == "" {
		to = opts.Tutor
	}
	req := thesis.SupervisionRequest{
		ThesisID:  th.ID,
		StudentID: student.ID,
		TutorID:   to.ID,
		State:     opts.Request,
		CreatedAt: tstamp,
	}
	if opts.Request != thesis.RequestPending {
		at := tstamp
		req.DecidedAt = &at
	}
	req, err = repo.CreateRequest(ctx, req)
	if err != nil {
		t.Fatalf("CreateThesis() failed creating request: %v", err)
	}
	return th, &req
}
