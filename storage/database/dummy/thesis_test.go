package dummydb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/thesisflow/core/thesis"
	"github.com/trezcool/thesisflow/core/workflow"
	dummydb "github.com/trezcool/thesisflow/storage/database/dummy"
)

var ctxBg = context.Background()

func newThesis(t *testing.T, repo thesis.Repository, status workflow.Status) thesis.Thesis {
	t.Helper()
	now := time.Now().UTC()
	th, err := repo.CreateThesis(ctxBg, thesis.Thesis{
		Title:         "Engines",
		StudentID:     "student",
		Status:        status,
		BillingStatus: thesis.Unbilled,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	return th
}

func newRequest(th thesis.Thesis, tutorID string, state thesis.RequestState, at time.Time) thesis.SupervisionRequest {
	return thesis.SupervisionRequest{ThesisID: th.ID, StudentID: th.StudentID, TutorID: tutorID, State: state, CreatedAt: at}
}

func TestThesisRepository_CreateRequest_oneOpenPerThesis(t *testing.T) {
	repo := dummydb.NewThesisRepository(dummydb.Open())
	th := newThesis(t, repo, workflow.InDiscussion)
	other := newThesis(t, repo, workflow.InDiscussion)
	now := time.Now().UTC()

	first, err := repo.CreateRequest(ctxBg, newRequest(th, "tutor", thesis.RequestPending, now))
	require.NoError(t, err)

	_, err = repo.CreateRequest(ctxBg, newRequest(th, "tutor2", thesis.RequestPending, now))
	assert.Equal(t, thesis.ErrRequestAlreadyOpen, err)
	_, err = repo.CreateRequest(ctxBg, newRequest(th, "tutor2", thesis.RequestAccepted, now))
	assert.Equal(t, thesis.ErrRequestAlreadyOpen, err)
	_, err = repo.CreateRequest(ctxBg, newRequest(th, "tutor2", thesis.RequestRejected, now))
	assert.NoError(t, err, "settled history is not limited")
	_, err = repo.CreateRequest(ctxBg, newRequest(other, "tutor2", thesis.RequestPending, now))
	assert.NoError(t, err)

	_, err = repo.DecideRequest(ctxBg, first.ID, thesis.RequestRejected, now)
	require.NoError(t, err)
	_, err = repo.CreateRequest(ctxBg, newRequest(th, "tutor2", thesis.RequestPending, now.Add(time.Second)))
	assert.NoError(t, err)
}

func TestThesisRepository_GetLatestRequest_sameCreationTime(t *testing.T) {
	repo := dummydb.NewThesisRepository(dummydb.Open())
	th := newThesis(t, repo, workflow.InDiscussion)
	now := time.Now().UTC()

	for _, tutorID := range []string{"t1", "t2", "t3"} {
		_, err := repo.CreateRequest(ctxBg, newRequest(th, tutorID, thesis.RequestRejected, now))
		require.NoError(t, err)
	}
	open, err := repo.CreateRequest(ctxBg, newRequest(th, "tutor", thesis.RequestPending, now))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		latest, err := repo.GetLatestRequest(ctxBg, th.ID)
		require.NoError(t, err)
		assert.Equal(t, open.ID, latest.ID)
	}

	reqs, err := repo.QueryRequests(ctxBg, &thesis.RequestFilter{ThesisID: th.ID})
	require.NoError(t, err)
	require.Len(t, reqs, 4)
	for i := 1; i < len(reqs); i++ {
		assert.True(t, reqs[i-1].ID > reqs[i].ID, "ties are ordered by id")
	}
}

func TestThesisRepository_pendingRequestUpdates(t *testing.T) {
	repo := dummydb.NewThesisRepository(dummydb.Open())
	th := newThesis(t, repo, workflow.InDiscussion)
	now := time.Now().UTC()
	req, err := repo.CreateRequest(ctxBg, newRequest(th, "tutor", thesis.RequestPending, now))
	require.NoError(t, err)

	reminded, err := repo.MarkRequestReminded(ctxBg, req.ID, now)
	require.NoError(t, err)
	assert.Equal(t, thesis.RequestPending, reminded.State)
	assert.Equal(t, now, *reminded.RemindedAt)

	accepted, err := repo.DecideRequest(ctxBg, req.ID, thesis.RequestAccepted, now)
	require.NoError(t, err)
	assert.Equal(t, thesis.RequestAccepted, accepted.State)
	assert.NotNil(t, accepted.RemindedAt, "the reminder date is kept")

	_, err = repo.DecideRequest(ctxBg, req.ID, thesis.RequestRejected, now)
	assert.Equal(t, thesis.ErrRequestNotPending, err)
	_, err = repo.MarkRequestReminded(ctxBg, req.ID, now)
	assert.Equal(t, thesis.ErrRequestNotPending, err)
	_, err = repo.DecideRequest(ctxBg, "unknown", thesis.RequestRejected, now)
	assert.Equal(t, thesis.ErrRequestNotFound, err)

	stored, err := repo.GetRequest(ctxBg, req.ID)
	require.NoError(t, err)
	assert.Equal(t, thesis.RequestAccepted, stored.State)
}

func TestThesisRepository_thesisUpdates(t *testing.T) {
	repo := dummydb.NewThesisRepository(dummydb.Open())
	th := newThesis(t, repo, workflow.InDiscussion)
	later := time.Now().UTC().Add(time.Minute)

	bound, err := repo.BindTutor(ctxBg, th.ID, "tutor", later)
	require.NoError(t, err)
	assert.Equal(t, "tutor", bound.TutorID)
	_, err = repo.BindTutor(ctxBg, th.ID, "tutor2", later)
	assert.Equal(t, thesis.ErrStatusConflict, err)

	renamed, err := repo.UpdateThesisDetails(ctxBg, th.ID, "Difference Engines", "notes", later)
	require.NoError(t, err)
	assert.Equal(t, "Difference Engines", renamed.Title)
	assert.Equal(t, "tutor", renamed.TutorID)
	assert.Equal(t, later, renamed.UpdatedAt)

	_, err = repo.ConfirmThesisRegistration(ctxBg, th.ID, later)
	assert.Equal(t, thesis.ErrStatusConflict, err, "only registered theses")
	_, err = repo.UpdateThesisStatus(ctxBg, th.ID, workflow.InDiscussion, workflow.Registered, later)
	require.NoError(t, err)
	confirmed, err := repo.ConfirmThesisRegistration(ctxBg, th.ID, later)
	require.NoError(t, err)
	assert.True(t, confirmed.RegistrationConfirmed())
	_, err = repo.ConfirmThesisRegistration(ctxBg, th.ID, later.Add(time.Minute))
	assert.Equal(t, thesis.ErrStatusConflict, err, "confirmed once")

	billed, err := repo.UpdateBillingStatus(ctxBg, th.ID, thesis.Billed, later)
	require.NoError(t, err)
	assert.Equal(t, thesis.Billed, billed.BillingStatus)
	assert.Equal(t, "Difference Engines", billed.Title)
	assert.True(t, billed.RegistrationConfirmed())

	_, err = repo.UpdateBillingStatus(ctxBg, "unknown", thesis.Billed, later)
	assert.Equal(t, thesis.ErrNotFound, err)
}
