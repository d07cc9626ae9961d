package schedulersvc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/thesisflow/core"
)

type reminderMock struct {
	mu        sync.Mutex
	calls     int
	olderThan time.Duration
	err       error
}

func (r *reminderMock) RemindPendingRequests(_ context.Context, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.olderThan = olderThan
	return 1, r.err
}

type loggerMock struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (l *loggerMock) Debug(string, ...interface{}) {}
func (l *loggerMock) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}
func (l *loggerMock) Warn(string, ...interface{}) {}
func (l *loggerMock) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}
func (l *loggerMock) Fatal(string, ...interface{}) {}

func TestScheduler_remind(t *testing.T) {
	conf := core.NewTestConfig()
	rem := &reminderMock{}
	logger := &loggerMock{}
	s := NewScheduler(conf, rem, logger)

	s.remind()
	assert.Equal(t, 1, rem.calls)
	assert.Equal(t, conf.Reminder.PendingAfter, rem.olderThan)
	assert.Len(t, logger.infos, 1)

	rem.err = errors.New("boom")
	s.remind()
	assert.Equal(t, 2, rem.calls)
	assert.Len(t, logger.errors, 1)
}

func TestScheduler_StartStop(t *testing.T) {
	conf := core.NewTestConfig()
	s := NewScheduler(conf, &reminderMock{}, &loggerMock{})

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "already running")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx) // no-op when stopped

	conf.Reminder.Schedule = "not a cron spec"
	s = NewScheduler(conf, &reminderMock{}, &loggerMock{})
	assert.Error(t, s.Start())
}

func TestNewScheduler_panicsOnNilDeps(t *testing.T) {
	assert.Panics(t, func() { NewScheduler(core.NewTestConfig(), nil, &loggerMock{}) })
}
