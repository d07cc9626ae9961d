// Package schedulersvc runs the periodic jobs of the app.
package schedulersvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/thesisflow/core"
)

// Reminder nudges tutors about supervision requests left unanswered.
type Reminder interface {
	RemindPendingRequests(ctx context.Context, olderThan time.Duration) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	reminder Reminder
	conf     core.ReminderConfig
	logger   core.Logger

	mu      sync.Mutex
	running bool
	timeout time.Duration
}

func NewScheduler(conf *core.Config, reminder Reminder, logger core.Logger) *Scheduler {
	vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(reminder, "reminder"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Scheduler{
		cron:     cron.New(),
		reminder: reminder,
		conf:     conf.Reminder,
		logger:   logger,
		timeout:  5 * time.Minute,
	}
}

// Start registers the jobs and starts the cron loop in its own goroutine.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}
	if _, err := s.cron.AddFunc(s.conf.Schedule, s.remind); err != nil {
		return errors.Wrapf(err, "scheduling reminders with %q", s.conf.Schedule)
	}
	s.cron.Start()
	s.running = true
	return nil
}

// Stop stops the cron loop and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler: jobs still running at shutdown")
	}
	s.running = false
}

func (s *Scheduler) remind() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.reminder.RemindPendingRequests(ctx, s.conf.PendingAfter)
	if err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: reminding pending requests: %v", err), err)
		return
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("scheduler: %d tutor(s) reminded of pending supervision requests", n))
	}
}
