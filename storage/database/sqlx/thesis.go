package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/workflow"
)

const (
	thesisColumns = `id, title, description, student_id, tutor_id, status, billing_status,
		registration_confirmed_at, created_at, updated_at`
	requestColumns = `id, thesis_id, student_id, tutor_id, state, message, created_at, decided_at, reminded_at`
)

var thesisSortable = map[string]bool{"title": true, "status": true, "created_at": true, "updated_at": true}

type thesisRow struct {
	ID                      string      `db:"id"`
	Title                   string      `db:"title"`
	Description             string      `db:"description"`
	StudentID               string      `db:"student_id"`
	TutorID                 null.String `db:"tutor_id"`
	Status                  string      `db:"status"`
	BillingStatus           string      `db:"billing_status"`
	RegistrationConfirmedAt null.Time   `db:"registration_confirmed_at"`
	CreatedAt               time.Time   `db:"created_at"`
	UpdatedAt               time.Time   `db:"updated_at"`
}

func toThesisRow(th thesis.Thesis) thesisRow {
	r := thesisRow{
		ID:            th.ID,
		Title:         th.Title,
		Description:   th.Description,
		StudentID:     th.StudentID,
		TutorID:       null.NewString(th.TutorID, th.TutorID != ""),
		Status:        string(th.Status),
		BillingStatus: string(th.BillingStatus),
		CreatedAt:     th.CreatedAt.UTC(),
		UpdatedAt:     th.UpdatedAt.UTC(),
	}
	if th.RegistrationConfirmed() {
		r.RegistrationConfirmedAt = null.TimeFrom(th.RegistrationConfirmedAt.UTC())
	}
	return r
}

func (r thesisRow) thesis() thesis.Thesis {
	return thesis.Thesis{
		ID:                      r.ID,
		Title:                   r.Title,
		Description:             r.Description,
		StudentID:               r.StudentID,
		TutorID:                 r.TutorID.String,
		Status:                  workflow.Status(r.Status),
		BillingStatus:           thesis.BillingStatus(r.BillingStatus),
		RegistrationConfirmedAt: utcPtr(r.RegistrationConfirmedAt),
		CreatedAt:               r.CreatedAt.UTC(),
		UpdatedAt:               r.UpdatedAt.UTC(),
	}
}

type requestRow struct {
	ID         string    `db:"id"`
	ThesisID   string    `db:"thesis_id"`
	StudentID  string    `db:"student_id"`
	TutorID    string    `db:"tutor_id"`
	State      string    `db:"state"`
	Message    string    `db:"message"`
	CreatedAt  time.Time `db:"created_at"`
	DecidedAt  null.Time `db:"decided_at"`
	RemindedAt null.Time `db:"reminded_at"`
}

func toRequestRow(req thesis.SupervisionRequest) requestRow {
	return requestRow{
		ID:         req.ID,
		ThesisID:   req.ThesisID,
		StudentID:  req.StudentID,
		TutorID:    req.TutorID,
		State:      string(req.State),
		Message:    req.Message,
		CreatedAt:  req.CreatedAt.UTC(),
		DecidedAt:  null.TimeFromPtr(req.DecidedAt),
		RemindedAt: null.TimeFromPtr(req.RemindedAt),
	}
}

func (r requestRow) request() thesis.SupervisionRequest {
	return thesis.SupervisionRequest{
		ID:         r.ID,
		ThesisID:   r.ThesisID,
		StudentID:  r.StudentID,
		TutorID:    r.TutorID,
		State:      thesis.RequestState(r.State),
		Message:    r.Message,
		CreatedAt:  r.CreatedAt.UTC(),
		DecidedAt:  utcPtr(r.DecidedAt),
		RemindedAt: utcPtr(r.RemindedAt),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

// validID guards UUID columns against malformed ids, which postgres rejects with a syntax error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type thesisRepository struct {
	base
}

var _ thesis.Repository = (*thesisRepository)(nil) // interface compliance check

func NewThesisRepository(db *sqlx.DB) *thesisRepository {
	return &thesisRepository{base{db: db}}
}

func (repo thesisRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo thesisRepository) CreateThesis(ctx context.Context, th thesis.Thesis, exec ...core.DBExecutor) (thesis.Thesis, error) {
	th.ID = uuid.New().String()
	r := toThesisRow(th)

	var row thesisRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `
		INSERT INTO thesis (`+thesisColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+thesisColumns,
		r.ID, r.Title, r.Description, r.StudentID, r.TutorID, r.Status, r.BillingStatus,
		r.RegistrationConfirmedAt, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return thesis.Thesis{}, errors.Wrap(err, "inserting thesis")
	}
	return row.thesis(), nil
}

func (repo thesisRepository) GetThesis(ctx context.Context, id string, exec ...core.DBExecutor) (thesis.Thesis, error) {
	if !validID(id) {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	var row thesisRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+thesisColumns+` FROM thesis WHERE id = $1`, id); err != nil {
		return thesis.Thesis{}, repo.trapNoRowsErr(err, thesis.ErrNotFound, "finding thesis")
	}
	return row.thesis(), nil
}

func (repo thesisRepository) QueryTheses(ctx context.Context, filter *thesis.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]thesis.Thesis, error) {
	q := new(query)

	if filter != nil {
		if filter.Search != "" {
			q.where("title ILIKE ?", "%"+filter.Search+"%")
		}
		if len(filter.Statuses) > 0 {
			q.where("status = ANY(?)", pq.StringArray(filter.Statuses))
		}
		if len(filter.BillingStatuses) > 0 {
			q.where("billing_status = ANY(?)", pq.StringArray(filter.BillingStatuses))
		}
		if filter.StudentID != "" {
			q.where("student_id::text = ?", filter.StudentID)
		}
		if filter.TutorID != "" {
			q.where("tutor_id::text = ?", filter.TutorID)
		}
		if filter.ParticipantID != "" {
			q.where("student_id::text = ? OR tutor_id::text = ?", filter.ParticipantID, filter.ParticipantID)
		}
	}

	var rows []thesisRow
	stmt := `SELECT ` + thesisColumns + ` FROM thesis` + q.String() + orderBy(ordering, thesisSortable, "created_at DESC")
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, stmt, q.args...); err != nil {
		return nil, errors.Wrap(err, "querying theses")
	}

	theses := make([]thesis.Thesis, 0, len(rows))
	for _, r := range rows {
		theses = append(theses, r.thesis())
	}
	return theses, nil
}

// updateThesis runs a guarded `UPDATE thesis ... RETURNING` statement. When no row matches it tells a
// missing thesis (ErrNotFound) from one its guard rejected (conflict).
func (repo thesisRepository) updateThesis(ctx context.Context, exec []core.DBExecutor, conflict error, stmt string, args ...interface{}) (thesis.Thesis, error) {
	id, _ := args[0].(string)
	if !validID(id) {
		return thesis.Thesis{}, thesis.ErrNotFound
	}
	db := repo.getExec(exec)

	var row thesisRow
	err := sqlx.GetContext(ctx, db, &row, stmt+` RETURNING `+thesisColumns, args...)
	if err == nil {
		return row.thesis(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return thesis.Thesis{}, errors.Wrap(err, "updating thesis")
	}
	if err = repo.checkExists(ctx, db, "thesis", id); err != nil {
		return thesis.Thesis{}, repo.trapNoRowsErr(err, thesis.ErrNotFound, "checking thesis existence")
	}
	return thesis.Thesis{}, conflict
}

// checkExists returns sql.ErrNoRows when table has no row with that id.
func (repo thesisRepository) checkExists(ctx context.Context, db sqlx.ExtContext, table, id string) error {
	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		return sql.ErrNoRows
	}
	return nil
}

func (repo thesisRepository) UpdateThesisDetails(ctx context.Context, id, title, description string, at time.Time, exec ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(ctx, exec, thesis.ErrNotFound, `
		UPDATE thesis SET title = $2, description = $3, updated_at = $4
		WHERE id = $1`,
		id, title, description, at.UTC(),
	)
}

func (repo thesisRepository) UpdateThesisStatus(ctx context.Context, id string, from, to workflow.Status, at time.Time, exec ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(ctx, exec, thesis.ErrStatusConflict, `
		UPDATE thesis SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at.UTC(),
	)
}

func (repo thesisRepository) BindTutor(ctx context.Context, id, tutorID string, at time.Time, exec ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(ctx, exec, thesis.ErrStatusConflict, `
		UPDATE thesis SET tutor_id = $2, updated_at = $3
		WHERE id = $1 AND tutor_id IS NULL`,
		id, tutorID, at.UTC(),
	)
}

func (repo thesisRepository) ConfirmThesisRegistration(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(ctx, exec, thesis.ErrStatusConflict, `
		UPDATE thesis SET registration_confirmed_at = $3, updated_at = $3
		WHERE id = $1 AND status = $2 AND registration_confirmed_at IS NULL`,
		id, string(workflow.Registered), at.UTC(),
	)
}

func (repo thesisRepository) UpdateBillingStatus(ctx context.Context, id string, bs thesis.BillingStatus, at time.Time, exec ...core.DBExecutor) (thesis.Thesis, error) {
	return repo.updateThesis(ctx, exec, thesis.ErrNotFound, `
		UPDATE thesis SET billing_status = $2, updated_at = $3
		WHERE id = $1`,
		id, string(bs), at.UTC(),
	)
}

func (repo thesisRepository) CreateRequest(ctx context.Context, req thesis.SupervisionRequest, exec ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	req.ID = uuid.New().String()
	r := toRequestRow(req)

	var row requestRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `
		INSERT INTO supervision_request (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+requestColumns,
		r.ID, r.ThesisID, r.StudentID, r.TutorID, r.State, r.Message, r.CreatedAt, r.DecidedAt, r.RemindedAt,
	)
	if err != nil {
		// supervision_request_open_uniq
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
			return thesis.SupervisionRequest{}, thesis.ErrRequestAlreadyOpen
		}
		return thesis.SupervisionRequest{}, errors.Wrap(err, "inserting supervision request")
	}
	return row.request(), nil
}

func (repo thesisRepository) GetRequest(ctx context.Context, id string, exec ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	if !validID(id) {
		return thesis.SupervisionRequest{}, thesis.ErrRequestNotFound
	}
	var row requestRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+requestColumns+` FROM supervision_request WHERE id = $1`, id)
	if err != nil {
		return thesis.SupervisionRequest{}, repo.trapNoRowsErr(err, thesis.ErrRequestNotFound, "finding supervision request")
	}
	return row.request(), nil
}

func (repo thesisRepository) GetLatestRequest(ctx context.Context, thesisID string, exec ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	if !validID(thesisID) {
		return thesis.SupervisionRequest{}, thesis.ErrRequestNotFound
	}
	var row requestRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `
		SELECT `+requestColumns+` FROM supervision_request
		WHERE thesis_id = $1
		ORDER BY created_at DESC, state = '`+string(thesis.RequestRejected)+`', id DESC
		LIMIT 1`,
		thesisID,
	)
	if err != nil {
		return thesis.SupervisionRequest{}, repo.trapNoRowsErr(err, thesis.ErrRequestNotFound, "finding latest supervision request")
	}
	return row.request(), nil
}

func (repo thesisRepository) QueryRequests(ctx context.Context, filter *thesis.RequestFilter, exec ...core.DBExecutor) ([]thesis.SupervisionRequest, error) {
	q := new(query)

	if filter != nil {
		if filter.ThesisID != "" {
			q.where("thesis_id::text = ?", filter.ThesisID)
		}
		if filter.StudentID != "" {
			q.where("student_id::text = ?", filter.StudentID)
		}
		if filter.TutorID != "" {
			q.where("tutor_id::text = ?", filter.TutorID)
		}
		if len(filter.States) > 0 {
			q.where("state = ANY(?)", pq.StringArray(filter.States))
		}
		if !filter.CreatedBefore.IsZero() {
			q.where("created_at < ?", filter.CreatedBefore.UTC())
		}
		if !filter.RemindedBefore.IsZero() {
			q.where("reminded_at IS NULL OR reminded_at < ?", filter.RemindedBefore.UTC())
		}
	}

	var rows []requestRow
	stmt := `SELECT ` + requestColumns + ` FROM supervision_request` + q.String() + ` ORDER BY created_at DESC, id DESC`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, stmt, q.args...); err != nil {
		return nil, errors.Wrap(err, "querying supervision requests")
	}

	reqs := make([]thesis.SupervisionRequest, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.request())
	}
	return reqs, nil
}

// updatePendingRequest runs an `UPDATE supervision_request ... WHERE id = $1 AND state = 'PENDING'` statement.
func (repo thesisRepository) updatePendingRequest(ctx context.Context, exec []core.DBExecutor, set string, args ...interface{}) (thesis.SupervisionRequest, error) {
	id, _ := args[0].(string)
	if !validID(id) {
		return thesis.SupervisionRequest{}, thesis.ErrRequestNotFound
	}
	db := repo.getExec(exec)

	var row requestRow
	err := sqlx.GetContext(ctx, db, &row, `
		UPDATE supervision_request SET `+set+`
		WHERE id = $1 AND state = '`+string(thesis.RequestPending)+`'
		RETURNING `+requestColumns,
		args...,
	)
	if err == nil {
		return row.request(), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return thesis.SupervisionRequest{}, errors.Wrap(err, "updating supervision request")
	}
	if err = repo.checkExists(ctx, db, "supervision_request", id); err != nil {
		return thesis.SupervisionRequest{}, repo.trapNoRowsErr(err, thesis.ErrRequestNotFound, "checking supervision request existence")
	}
	return thesis.SupervisionRequest{}, thesis.ErrRequestNotPending
}

func (repo thesisRepository) DecideRequest(ctx context.Context, id string, state thesis.RequestState, at time.Time, exec ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	return repo.updatePendingRequest(ctx, exec, `state = $2, decided_at = $3`, id, string(state), at.UTC())
}

func (repo thesisRepository) MarkRequestReminded(ctx context.Context, id string, at time.Time, exec ...core.DBExecutor) (thesis.SupervisionRequest, error) {
	return repo.updatePendingRequest(ctx, exec, `reminded_at = $2`, id, at.UTC())
}
