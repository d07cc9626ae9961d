package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/workflow"
)

type thesisRepository struct {
	db *thesisTable
}

var _ thesis.Repository = (*thesisRepository)(nil) // interface compliance check

func NewThesisRepository(db *DB) thesis.Repository {
	return &thesisRepository{db: db.thesis}
}

func copyThesis(th thesis.Thesis) thesis.Thesis {
	if th.RegistrationConfirmedAt != nil {
		at := *th.RegistrationConfirmedAt
		th.RegistrationConfirmedAt = &at
	}
	return th
}

func copyRequest(req thesis.SupervisionRequest) thesis.SupervisionRequest {
	if req.DecidedAt != nil {
		at := *req.DecidedAt
		req.DecidedAt = &at
	}
	if req.RemindedAt != nil {
		at := *req.RemindedAt
		req.RemindedAt = &at
	}
	return req
}

func (repo *thesisRepository) CreateThesis(_ context.Context, th thesis.Thesis, _ ...core.DBExecutor) (thesis.Thesis, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	th.ID = uuid.New().String()
	stored := copyThesis(th)
	repo.db.table[th.ID] = &stored
	return th, nil
}

func (repo *thesisRepository) GetThesis(_ context.Context, id string, _ ...core.DBExecutor) (thesis.Thesis, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if th, ok := repo.db.table[id]; ok {
		return copyThesis(*th), nil
	}
	return thesis.Thesis{}, thesis.ErrNotFound
}

func (repo *thesisRepository) QueryTheses(_ context.Context, filter *thesis.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]thesis.Thesis, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	theses := make([]thesis.Thesis, 0, len(repo.db.table))
	for _, th := range repo.db.table {
		if filter == nil || matchThesis(*th, filter) {
			theses = append(theses, copyThesis(*th))
		}
	}
	sortTheses(theses, ordering)
	return theses, nil
}

func matchThesis(th thesis.Thesis, filter *thesis.QueryFilter) bool {
	if filter.Search != "" && !strings.Contains(strings.ToLower(th.Title), strings.ToLower(filter.Search)) {
		return false
	}
	if len(filter.Statuses) > 0 && !containsString(filter.Statuses, string(th.Status)) {
		return false
	}
	if len(filter.BillingStatuses) > 0 && !containsString(filter.BillingStatuses, string(th.BillingStatus)) {
		return false
	}
	if filter.StudentID != "" && th.StudentID != filter.StudentID {
		return false
	}
	if filter.TutorID != "" && th.TutorID != filter.TutorID {
		return false
	}
	if filter.ParticipantID != "" && th.StudentID != filter.ParticipantID && th.TutorID != filter.ParticipantID {
		return false
	}
	return true
}

func sortTheses(theses []thesis.Thesis, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(theses, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "title":
				cmp = strings.Compare(theses[i].Title, theses[j].Title)
			case "status":
				cmp = theses[i].Status.Index() - theses[j].Status.Index()
			case "created_at":
				cmp = compareTimes(theses[i].CreatedAt, theses[j].CreatedAt)
			case "updated_at":
				cmp = compareTimes(theses[i].UpdatedAt, theses[j].UpdatedAt)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})
}

// updateThesis applies set to the stored thesis when guard accepts it, conflict otherwise.
func (repo *thesisRepository) updateThesis(id string, at time.Time, conflict error, guard func(*thesis.Thesis) bool, set func(*thesis.Thesis)) (thesis.Thesis, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	th, ok := repo.db.table[id]
	if !ok {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	if guard != nil && !guard(th) {
		return thesis.Thesis{}, conflict
	}
	set(th)
	th.UpdatedAt = at
	return copyThesis(*th), nil
}

func (repo *thesisRepository) UpdateThesisDetails(_ context.Context, id, title, description string, at time.Time, _ ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(id, at, nil, nil, func(th *thesis.Thesis) {
		th.Title = title
		th.Description = description
	})
}

func (repo *thesisRepository) UpdateThesisStatus(_ context.Context, id string, from, to workflow.Status, at time.Time, _ ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(id, at, thesis.ErrStatusConflict,
		func(th *thesis.Thesis) bool { return th.Status == from },
		func(th *thesis.Thesis) { th.Status = to },
	)
}

func (repo *thesisRepository) BindTutor(_ context.Context, id, tutorID string, at time.Time, _ ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(id, at, thesis.ErrStatusConflict,
		func(th *thesis.Thesis) bool { return th.TutorID == "" },
		func(th *thesis.Thesis) { th.TutorID = tutorID },
	)
}

func (repo *thesisRepository) ConfirmThesisRegistration(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(id, at, thesis.ErrStatusConflict,
		func(th *thesis.Thesis) bool { return th.Status == workflow.Registered && !th.RegistrationConfirmed() },
		func(th *thesis.Thesis) {
			confirmedAt := at
			th.RegistrationConfirmedAt = &confirmedAt
		},
	)
}

func (repo *thesisRepository) UpdateBillingStatus(_ context.Context, id string, bs thesis.BillingStatus, at time.Time, _ ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(id, at, nil, nil, func(th *thesis.Thesis) { th.BillingStatus = bs })
}

func (repo *thesisRepository) CreateRequest(_ context.Context, req thesis.SupervisionRequest, _ ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// same rule as the supervision_request_open_uniq index
	if req.IsOpen() {
		for _, other := range repo.db.requests {
			if other.ThesisID == req.ThesisID && other.IsOpen() {
				return thesis.SupervisionRequest{}, thesis.ErrRequestAlreadyOpen
			}
		}
	}

	req.ID = uuid.New().String()
	stored := copyRequest(req)
	repo.db.requests[req.ID] = &stored
	return req, nil
}

func (repo *thesisRepository) GetRequest(_ context.Context, id string, _ ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if req, ok := repo.db.requests[id]; ok {
		return copyRequest(*req), nil
	}
	return thesis.SupervisionRequest{}, thesis.ErrRequestNotFound
}

func (repo *thesisRepository) GetLatestRequest(_ context.Context, thesisID string, _ ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *thesis.SupervisionRequest
	for _, req := range repo.db.requests {
		if req.ThesisID != thesisID {
			continue
		}
		if latest == nil || newerRequest(*req, *latest) {
			latest = req
		}
	}
	if latest == nil {
		return thesis.SupervisionRequest{}, thesis.ErrRequestNotFound
	}
	return copyRequest(*latest), nil
}

func (repo *thesisRepository) QueryRequests(_ context.Context, filter *thesis.RequestFilter, _ ...core.DBExecutor) ([]thesis.SupervisionRequest, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	reqs := make([]thesis.SupervisionRequest, 0)
	for _, req := range repo.db.requests {
		if filter == nil || matchRequest(*req, filter) {
			reqs = append(reqs, copyRequest(*req))
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if cmp := compareTimes(reqs[i].CreatedAt, reqs[j].CreatedAt); cmp != 0 {
			return cmp > 0
		}
		return reqs[i].ID > reqs[j].ID
	})
	return reqs, nil
}

func matchRequest(req thesis.SupervisionRequest, filter *thesis.RequestFilter) bool {
	if filter.ThesisID != "" && req.ThesisID != filter.ThesisID {
		return false
	}
	if filter.StudentID != "" && req.StudentID != filter.StudentID {
		return false
	}
	if filter.TutorID != "" && req.TutorID != filter.TutorID {
		return false
	}
	if len(filter.States) > 0 && !containsString(filter.States, string(req.State)) {
		return false
	}
	if !filter.CreatedBefore.IsZero() && !req.CreatedAt.Before(filter.CreatedBefore) {
		return false
	}
	if !filter.RemindedBefore.IsZero() && req.RemindedAt != nil && !req.RemindedAt.Before(filter.RemindedBefore) {
		return false
	}
	return true
}

// newerRequest orders like the SQL store: newest first, open before settled, then by id.
func newerRequest(a, b thesis.SupervisionRequest) bool {
	if cmp := compareTimes(a.CreatedAt, b.CreatedAt); cmp != 0 {
		return cmp > 0
	}
	if aOpen, bOpen := a.State != thesis.RequestRejected, b.State != thesis.RequestRejected; aOpen != bOpen {
		return aOpen
	}
	return a.ID > b.ID
}

// updatePendingRequest applies set to a stored PENDING request.
func (repo *thesisRepository) updatePendingRequest(id string, set func(*thesis.SupervisionRequest)) (thesis.SupervisionRequest, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	req, ok := repo.db.requests[id]
	if !ok {
		return thesis.SupervisionRequest{}, thesis.ErrRequestNotFound
	}
	if req.State != thesis.RequestPending {
		return thesis.SupervisionRequest{}, thesis.ErrRequestNotPending
	}
	set(req)
	return copyRequest(*req), nil
}

func (repo *thesisRepository) DecideRequest(_ context.Context, id string, state thesis.RequestState, at time.Time, _ ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	return repo.updatePendingRequest(id, func(req *thesis.SupervisionRequest) {
		decidedAt := at
		req.State = state
		req.DecidedAt = &decidedAt
	})
}

func (repo *thesisRepository) MarkRequestReminded(_ context.Context, id string, at time.Time, _ ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	return repo.updatePendingRequest(id, func(req *thesis.SupervisionRequest) {
		remindedAt := at
		req.RemindedAt = &remindedAt
	})
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
