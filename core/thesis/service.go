package thesis

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
	"github.com/trezcool/thesisflow/core/workflow"
)

var (
	// errors
	ErrNotFound                   = errors.New("thesis not found")
	ErrRequestNotFound            = errors.New("supervision request not found")
	ErrForbidden                  = errors.New("permission denied")
	ErrTransitionNotAllowed       = errors.New("status transition not allowed")
	ErrStatusConflict             = errors.New("thesis status was changed concurrently, reload and retry")
	ErrRequestAlreadyOpen         = errors.New("thesis already has an open supervision request")
	ErrRequestNotPending          = errors.New("supervision request is not pending")
	ErrRegistrationNotConfirmable = errors.New("only registered theses can have their registration confirmed")

	errTutorNotFound = "tutor not found"

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateThesis(ctx context.Context, th Thesis, exec ...core.DBExecutor) (Thesis, error)
		GetThesis(ctx context.Context, id string, exec ...core.DBExecutor) (Thesis, error)
		// QueryTheses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Thesis.Title.
		QueryTheses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Thesis, error)
		// UpdateThesisDetails writes the title & description only. The other updates below
		// also leave the remaining columns alone, so concurrent updates never undo each other.
		UpdateThesisDetails(ctx context.Context, id, title, description string, at time.Time, exec ...core.DBExecutor) (Thesis, error)
		// UpdateThesisStatus moves the thesis from `from` to `to`; it fails with ErrStatusConflict
		// when the stored status is not `from` anymore.
		UpdateThesisStatus(ctx context.Context, id string, from, to workflow.Status, at time.Time, exec ...core.DBExecutor) (Thesis, error)
		// BindTutor sets the tutor of a thesis that has none; ErrStatusConflict if one is bound already.
		BindTutor(ctx context.Context, id, tutorID string, at time.Time, exec ...core.DBExecutor) (Thesis, error)
		// ConfirmThesisRegistration stamps a REGISTERED, unconfirmed thesis;
		// ErrStatusConflict when the thesis is not in that state.
		ConfirmThesisRegistration(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) (Thesis, error)
		UpdateBillingStatus(ctx context.Context, id string, bs BillingStatus, at time.Time, exec ...core.DBExecutor) (Thesis, error)

		// CreateRequest fails with ErrRequestAlreadyOpen when the thesis has a PENDING or ACCEPTED request.
		CreateRequest(ctx context.Context, req SupervisionRequest, exec ...core.DBExecutor) (SupervisionRequest, error)
		GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (SupervisionRequest, error)
		// GetLatestRequest returns the most recent request of a thesis, ErrRequestNotFound if there is none.
		// An open request wins over a settled one created at the same time.
		GetLatestRequest(ctx context.Context, thesisID string, exec ...core.DBExecutor) (SupervisionRequest, error)
		// QueryRequests returns requests newest first.
		QueryRequests(ctx context.Context, filter *RequestFilter, exec ...core.DBExecutor) ([]SupervisionRequest, error)
		// DecideRequest settles a PENDING request; ErrRequestNotPending when it was settled already.
		DecideRequest(ctx context.Context, id string, state RequestState, at time.Time, exec ...core.DBExecutor) (SupervisionRequest, error)
		// MarkRequestReminded stamps the reminder date of a PENDING request; ErrRequestNotPending otherwise.
		MarkRequestReminded(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) (SupervisionRequest, error)
	}

	// UserGetter looks up the users theses refer to.
	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor user.User, nt NewThesis) (Detail, error)
		Get(ctx context.Context, actor user.User, id string) (Detail, error)
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Thesis, error)
		UpdateDetails(ctx context.Context, actor user.User, id string, ut UpdateThesis) (Detail, error)
		Plan(ctx context.Context, actor user.User, id string) (workflow.Decision, error)
		UpdateStatus(ctx context.Context, actor user.User, id string, to workflow.Status) (Detail, error)
		RequestSupervision(ctx context.Context, actor user.User, thesisID string, nr NewSupervisionRequest) (SupervisionRequest, error)
		QueryRequests(ctx context.Context, actor user.User, filter *RequestFilter) ([]SupervisionRequest, error)
		AcceptRequest(ctx context.Context, actor user.User, id string) (SupervisionRequest, error)
		RejectRequest(ctx context.Context, actor user.User, id string) (SupervisionRequest, error)
		ConfirmRegistration(ctx context.Context, id string) (Thesis, error)
		SetBillingStatus(ctx context.Context, id string, bs BillingStatus) (Thesis, error)
		RemindPendingRequests(ctx context.Context, olderThan time.Duration) (int, error)
	}

	service struct {
		db      core.DB
		repo    Repository
		users   UserGetter
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns the thesis service. db may be nil when repo is not SQL backed.
func NewService(db core.DB, repo Repository, users UserGetter, mailSvc core.EmailService, logger core.Logger) ServiceInterface {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		db:      db,
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

// load returns the thesis & its latest request (nil if none) when actor may see it.
func (svc *service) load(ctx context.Context, actor user.User, id string, exec ...core.DBExecutor) (Thesis, *SupervisionRequest, error) {
	th, err := svc.repo.GetThesis(ctx, id, exec...)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Thesis{}, nil, ErrNotFound
		}
		return Thesis{}, nil, errors.Wrap(err, "getting thesis")
	}
	latest, err := svc.latestRequest(ctx, th.ID, exec...)
	if err != nil {
		return Thesis{}, nil, err
	}
	if !CanView(th, latest, actor) {
		return Thesis{}, nil, ErrNotFound
	}
	return th, latest, nil
}

func (svc *service) latestRequest(ctx context.Context, thesisID string, exec ...core.DBExecutor) (*SupervisionRequest, error) {
	req, err := svc.repo.GetLatestRequest(ctx, thesisID, exec...)
	if err != nil {
		if errors.Cause(err) == ErrRequestNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "getting latest supervision request")
	}
	return &req, nil
}

func (svc *service) detail(th Thesis, latest *SupervisionRequest, actor user.User) Detail {
	snap := NewSnapshot(th, latest)
	role := ActorRole(th, latest, actor)
	return Detail{
		Thesis:             th,
		StatusLabel:        workflow.Translate(snap, role),
		SupervisionRequest: latest,
		StatusPlan:         Planner(th).Plan(snap, role),
	}
}

func (svc *service) Create(ctx context.Context, actor user.User, nt NewThesis) (Detail, error) {
	if !actor.IsStudent() {
		return Detail{}, ErrForbidden
	}
	now := NowFunc().UTC()
	th, err := svc.repo.CreateThesis(ctx, Thesis{
		Title:         nt.Title,
		Description:   nt.Description,
		StudentID:     actor.ID,
		Status:        workflow.InDiscussion,
		BillingStatus: Unbilled,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Detail{}, errors.Wrap(err, "creating thesis")
	}
	return svc.detail(th, nil, actor), nil
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Detail, error) {
	th, latest, err := svc.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	return svc.detail(th, latest, actor), nil
}

// Query lists all theses for admins; everyone else only sees the theses they own or supervise.
func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Thesis, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.IsAdmin() {
		filter.ParticipantID = actor.ID
	}
	theses, err := svc.repo.QueryTheses(ctx, filter, ordering)
	if err != nil {
		return nil, errors.Wrap(err, "querying theses")
	}
	return theses, nil
}

func (svc *service) UpdateDetails(ctx context.Context, actor user.User, id string, ut UpdateThesis) (Detail, error) {
	th, latest, err := svc.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	if th.StudentID != actor.ID {
		return Detail{}, ErrForbidden
	}
	title, description := th.Title, th.Description
	if ut.Title != nil {
		title = *ut.Title
	}
	if ut.Description != nil {
		description = *ut.Description
	}

	th, err = svc.repo.UpdateThesisDetails(ctx, th.ID, title, description, NowFunc().UTC())
	if err != nil {
		return Detail{}, errors.Wrap(err, "updating thesis")
	}
	return svc.detail(th, latest, actor), nil
}

func (svc *service) Plan(ctx context.Context, actor user.User, id string) (workflow.Decision, error) {
	th, latest, err := svc.load(ctx, actor, id)
	if err != nil {
		return workflow.Decision{}, err
	}
	return Planner(th).Plan(NewSnapshot(th, latest), ActorRole(th, latest, actor)), nil
}

// UpdateStatus moves the thesis to `to` on behalf of actor. The target must be offered and enabled
// by the actor's plan and be the successor the workflow grants them. Picking the state the plan
// presents as current is a no-op.
func (svc *service) UpdateStatus(ctx context.Context, actor user.User, id string, to workflow.Status) (Detail, error) {
	th, latest, err := svc.load(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}

	snap := NewSnapshot(th, latest)
	role := ActorRole(th, latest, actor)
	decision := Planner(th).Plan(snap, role)

	if !decision.Allows(to) {
		return Detail{}, ErrTransitionNotAllowed
	}
	if to == th.Status || isDisplayedCurrent(decision, role, to) {
		return svc.detail(th, latest, actor), nil
	}
	if next, ok := workflow.NextState(snap, role); !ok || next != to {
		return Detail{}, ErrTransitionNotAllowed
	}

	from := th.Status
	th, err = svc.repo.UpdateThesisStatus(ctx, th.ID, from, to, NowFunc().UTC())
	if err != nil {
		if errors.Cause(err) == ErrStatusConflict {
			return Detail{}, ErrStatusConflict
		}
		return Detail{}, errors.Wrap(err, "updating thesis status")
	}

	svc.notifyStatusChanged(ctx, th, actor, role, from)
	return svc.detail(th, latest, actor), nil
}

// isDisplayedCurrent tells whether `to` is the state a student's selector starts at, which may be
// behind the stored status while a registration awaits confirmation.
func isDisplayedCurrent(decision workflow.Decision, role workflow.Role, to workflow.Status) bool {
	return role == workflow.RoleStudent && len(decision.AvailableStates) > 0 && decision.AvailableStates[0].Code == to
}

func (svc *service) RequestSupervision(ctx context.Context, actor user.User, thesisID string, nr NewSupervisionRequest) (SupervisionRequest, error) {
	th, latest, err := svc.load(ctx, actor, thesisID)
	if err != nil {
		return SupervisionRequest{}, err
	}
	if th.StudentID != actor.ID {
		return SupervisionRequest{}, ErrForbidden
	}
	if th.TutorID != "" || (latest != nil && latest.IsOpen()) {
		return SupervisionRequest{}, ErrRequestAlreadyOpen
	}

	tutor, err := svc.users.GetByID(ctx, nr.TutorID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return SupervisionRequest{}, core.NewFieldError("tutor_id", errTutorNotFound)
		}
		return SupervisionRequest{}, errors.Wrap(err, "getting tutor")
	}
	if !tutor.IsTutor() || !tutor.Active() || tutor.ID == actor.ID {
		return SupervisionRequest{}, core.NewFieldError("tutor_id", errTutorNotFound)
	}

	req, err := svc.repo.CreateRequest(ctx, SupervisionRequest{
		ThesisID:  th.ID,
		StudentID: th.StudentID,
		TutorID:   tutor.ID,
		State:     RequestPending,
		Message:   nr.Message,
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrRequestAlreadyOpen {
			return SupervisionRequest{}, ErrRequestAlreadyOpen
		}
		return SupervisionRequest{}, errors.Wrap(err, "creating supervision request")
	}

	svc.notifyRequested(th, req, actor, tutor)
	return req, nil
}

// QueryRequests lists the requests an actor is part of; admins see them all.
func (svc *service) QueryRequests(ctx context.Context, actor user.User, filter *RequestFilter) ([]SupervisionRequest, error) {
	if filter == nil {
		filter = new(RequestFilter)
	}
	if !actor.IsAdmin() {
		switch {
		case actor.IsTutor():
			filter.TutorID = actor.ID
		default:
			filter.StudentID = actor.ID
		}
	}
	reqs, err := svc.repo.QueryRequests(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying supervision requests")
	}
	return reqs, nil
}

func (svc *service) AcceptRequest(ctx context.Context, actor user.User, id string) (SupervisionRequest, error) {
	return svc.decide(ctx, actor, id, RequestAccepted)
}

func (svc *service) RejectRequest(ctx context.Context, actor user.User, id string) (SupervisionRequest, error) {
	return svc.decide(ctx, actor, id, RequestRejected)
}

// decide settles a pending request. Accepting it binds its tutor to the thesis in the same transaction.
// The state change is a compare-and-set, so of two concurrent decisions only the first one wins.
func (svc *service) decide(ctx context.Context, actor user.User, id string, state RequestState) (SupervisionRequest, error) {
	var req SupervisionRequest
	var th Thesis

	err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		req, err = svc.repo.GetRequest(ctx, id, exec)
		if err != nil {
			if errors.Cause(err) == ErrRequestNotFound {
				return ErrRequestNotFound
			}
			return errors.Wrap(err, "getting supervision request")
		}
		switch actor.ID {
		case req.TutorID: // ok
		case req.StudentID:
			return ErrForbidden
		default:
			return ErrRequestNotFound
		}
		if req.State != RequestPending {
			return ErrRequestNotPending
		}

		now := NowFunc().UTC()
		if req, err = svc.repo.DecideRequest(ctx, req.ID, state, now, exec); err != nil {
			if errors.Cause(err) == ErrRequestNotPending {
				return ErrRequestNotPending
			}
			return errors.Wrap(err, "updating supervision request")
		}

		if state == RequestAccepted {
			if th, err = svc.repo.BindTutor(ctx, req.ThesisID, req.TutorID, now, exec); err != nil {
				return errors.Wrap(err, "binding tutor")
			}
		} else if th, err = svc.repo.GetThesis(ctx, req.ThesisID, exec); err != nil {
			return errors.Wrap(err, "getting thesis")
		}
		return nil
	})
	if err != nil {
		return SupervisionRequest{}, err
	}

	svc.notifyDecided(ctx, th, req, actor)
	return req, nil
}

// ConfirmRegistration records the examination office's confirmation of a REGISTERED thesis.
// Confirming twice keeps the first confirmation date.
func (svc *service) ConfirmRegistration(ctx context.Context, id string) (Thesis, error) {
	th, err := svc.repo.GetThesis(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Thesis{}, ErrNotFound
		}
		return Thesis{}, errors.Wrap(err, "getting thesis")
	}
	if th.Status != workflow.Registered {
		return Thesis{}, ErrRegistrationNotConfirmable
	}
	if th.RegistrationConfirmed() {
		return th, nil
	}

	confirmed, err := svc.repo.ConfirmThesisRegistration(ctx, id, NowFunc().UTC())
	if err != nil {
		if errors.Cause(err) != ErrStatusConflict {
			return Thesis{}, errors.Wrap(err, "confirming registration")
		}
		// confirmed or moved on since we read it
		if th, err = svc.repo.GetThesis(ctx, id); err != nil {
			return Thesis{}, errors.Wrap(err, "getting thesis")
		}
		if th.Status == workflow.Registered && th.RegistrationConfirmed() {
			return th, nil
		}
		return Thesis{}, ErrRegistrationNotConfirmable
	}

	svc.notifyRegistrationConfirmed(ctx, confirmed)
	return confirmed, nil
}

func (svc *service) SetBillingStatus(ctx context.Context, id string, bs BillingStatus) (Thesis, error) {
	if !bs.IsValid() {
		return Thesis{}, core.NewFieldError("billing_status", billingStatusText)
	}
	th, err := svc.repo.GetThesis(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Thesis{}, ErrNotFound
		}
		return Thesis{}, errors.Wrap(err, "getting thesis")
	}
	if th.BillingStatus == bs {
		return th, nil
	}
	th, err = svc.repo.UpdateBillingStatus(ctx, id, bs, NowFunc().UTC())
	return th, errors.Wrap(err, "updating billing status")
}

// RemindPendingRequests reminds tutors of requests pending for longer than olderThan.
// A request is reminded at most once per olderThan window. It returns the number of reminders sent.
func (svc *service) RemindPendingRequests(ctx context.Context, olderThan time.Duration) (int, error) {
	now := NowFunc().UTC()
	threshold := now.Add(-olderThan)
	reqs, err := svc.repo.QueryRequests(ctx, &RequestFilter{
		States:         []string{string(RequestPending)},
		CreatedBefore:  threshold,
		RemindedBefore: threshold,
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying pending supervision requests")
	}

	var sent int
	for _, req := range reqs {
		if err = ctx.Err(); err != nil {
			return sent, err
		}

		tutor, err := svc.users.GetByID(ctx, req.TutorID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("reminder for request %s: getting tutor: %v", req.ID, err), err, req)
			continue
		}
		th, err := svc.repo.GetThesis(ctx, req.ThesisID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("reminder for request %s: getting thesis: %v", req.ID, err), err, req)
			continue
		}

		req, err = svc.repo.MarkRequestReminded(ctx, req.ID, now)
		if err != nil {
			if errors.Cause(err) == ErrRequestNotPending {
				continue // decided meanwhile
			}
			return sent, errors.Wrap(err, "updating supervision request")
		}
		svc.notifyReminder(th, req, tutor)
		sent++
	}
	return sent, nil
}
