package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/justsurfingit/eis/internal/dtos"
)

const (
	DefaultRetryBackoff = 5 * time.Minute
	DefaultStopTimeout  = 30 * time.Second
)

type Runner interface {
	RunScraping(ctx context.Context, lookbackDays int) dtos.RunStats
}

// SchedulerService repeats scraping runs on an interval. The wait between
// runs is period minus the last run's duration and wakes early on Stop.
type SchedulerService struct {
	RetryBackoff time.Duration
	StopTimeout  time.Duration

	runner       Runner
	lookbackDays int
	log          zerolog.Logger
	now          func() time.Time

	// runMu is held for the whole of a run, from the loop or RunOnce.
	runMu sync.Mutex

	mu            sync.Mutex
	cancel        context.CancelFunc
	done          chan struct{}
	period        time.Duration
	lastRun       *time.Time
	nextRun       *time.Time
	runsCompleted int
	lastStats     *dtos.RunStats
}

func NewSchedulerService(runner Runner, lookbackDays int, log zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		RetryBackoff: DefaultRetryBackoff,
		StopTimeout:  DefaultStopTimeout,
		runner:       runner,
		lookbackDays: lookbackDays,
		log:          log.With().Str("component", "scheduler").Logger(),
		now:          time.Now,
	}
}

// Start launches the background loop. It reports false when the loop is
// already running or period is not positive.
func (s *SchedulerService) Start(period time.Duration) bool {
	if period <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.period = period
	go s.loop(ctx, period, s.done)

	s.log.Info().Dur("period", period).Msg("scheduler started")
	return true
}

// Stop cancels the loop and waits up to StopTimeout for it to exit. A run
// already in progress finishes; only the next one is prevented.
func (s *SchedulerService) Stop() bool {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return false
	}
	s.cancel()
	done := s.done
	s.cancel = nil
	s.done = nil
	s.nextRun = nil
	s.mu.Unlock()

	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped")
	case <-time.After(s.StopTimeout):
		s.log.Warn().Dur("timeout", s.StopTimeout).Msg("scheduler loop still busy after stop")
	}
	return true
}

func (s *SchedulerService) Status() dtos.ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := dtos.ServiceStatus{
		Running:       s.cancel != nil,
		RunsCompleted: s.runsCompleted,
		LastRun:       copyTime(s.lastRun),
		NextRun:       copyTime(s.nextRun),
	}
	if st.Running {
		st.PeriodSeconds = s.period.Seconds()
	}
	if s.lastStats != nil {
		stats := *s.lastStats
		st.LastStats = &stats
	}
	return st
}

// RunOnce runs immediately unless a run is already in flight, in which case
// it returns false without waiting.
func (s *SchedulerService) RunOnce(ctx context.Context, lookbackDays int) (dtos.RunStats, bool) {
	if !s.runMu.TryLock() {
		return dtos.RunStats{}, false
	}
	defer s.runMu.Unlock()
	return s.execute(ctx, lookbackDays), true
}

func (s *SchedulerService) loop(ctx context.Context, period time.Duration, done chan struct{}) {
	defer close(done)
	for {
		s.runMu.Lock()
		started := s.now()
		stats := s.execute(context.WithoutCancel(ctx), s.lookbackDays)
		s.runMu.Unlock()

		wait := max(0, period-s.now().Sub(started))
		if !stats.IsSuccess {
			wait = min(wait, s.RetryBackoff)
			s.log.Warn().Str("error", stats.ErrorMessage).Dur("retry_in", wait).Msg("run failed")
		}

		s.mu.Lock()
		if ctx.Err() == nil {
			next := s.now().Add(wait)
			s.nextRun = &next
		}
		s.mu.Unlock()

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (s *SchedulerService) execute(ctx context.Context, lookbackDays int) (stats dtos.RunStats) {
	if lookbackDays <= 0 {
		lookbackDays = s.lookbackDays
	}
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("scraping run panicked")
			stats = dtos.RunStats{
				StartTime:       started,
				EndTime:         s.now(),
				ErrorMessage:    fmt.Sprintf("panic: %v", r),
				DurationSeconds: s.now().Sub(started).Seconds(),
			}
		}
		s.record(started, stats)
	}()
	return s.runner.RunScraping(ctx, lookbackDays)
}

func (s *SchedulerService) record(started time.Time, stats dtos.RunStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &started
	s.lastStats = &stats
	s.runsCompleted++
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
