package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs tickFn on a cron schedule. Runs never overlap: a tick that
// fires while the previous one is still working is skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	location *time.Location
	tickFn   func(context.Context)
	logger   *zap.Logger

	running atomic.Bool
	ticking atomic.Bool

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(spec string, location *time.Location, tickFn func(context.Context), logger *zap.Logger) (*Scheduler, error) {
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	if location == nil {
		location = time.UTC
	}
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		spec:     spec,
		schedule: schedule,
		location: location,
		tickFn:   tickFn,
		logger:   logger,
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(s.location))
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		s.safeTick(ctx, "cron")
	}))
	s.cron.Start()
	s.running.Store(true)

	s.logger.Info("scheduler started",
		zap.String("schedule", s.spec),
		zap.String("location", s.location.String()),
		zap.Time("next_run", s.schedule.Next(time.Now().In(s.location))),
	)
	return true
}

// Stop cancels the running tick, if any, and waits for it to return.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.cron.Stop().Done()
	s.running.Store(false)

	s.logger.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

// Next reports when the schedule fires next, or the zero time when stopped.
func (s *Scheduler) Next() time.Time {
	if !s.running.Load() {
		return time.Time{}
	}
	return s.schedule.Next(time.Now().In(s.location))
}

// RunNow starts an out-of-schedule run in the background. It reports false
// when a run is already in progress.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.ticking.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.ticking.Store(false)
		s.tick(ctx, "manual")
	}()
	return true
}

// Wait blocks until background runs started by RunNow have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) safeTick(ctx context.Context, trigger string) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping tick", zap.String("trigger", trigger))
		return
	}
	defer s.ticking.Store(false)
	s.tick(ctx, trigger)
}

func (s *Scheduler) tick(ctx context.Context, trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler tick panic recovered",
				zap.String("trigger", trigger),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	s.tickFn(ctx)
	s.logger.Info("scheduler tick completed",
		zap.String("trigger", trigger),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
}
