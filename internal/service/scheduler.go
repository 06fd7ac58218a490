package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DailyJob is one run of a once-a-day task.
type DailyJob func(ctx context.Context) error

// DailyScheduler runs a job every day at a fixed local wall-clock time.
type DailyScheduler struct {
	name     string
	job      DailyJob
	hour     int
	minute   int
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
}

func NewDailyScheduler(
	name string,
	job DailyJob,
	hour int,
	minute int,
	location *time.Location,
	logger *zap.Logger,
) (*DailyScheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("daily job is required")
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid daily run time %02d:%02d", hour, minute)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DailyScheduler{
		name:     name,
		job:      job,
		hour:     hour,
		minute:   minute,
		location: location,
		logger:   logger.With(zap.String("job", name)),
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Start blocks until ctx is canceled. A failed run is logged and the next
// day's run is scheduled as usual.
func (s *DailyScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		next := s.nextRun(s.now())
		s.logger.Info("daily job scheduled", zap.Time("nextRun", next))

		select {
		case <-ctx.Done():
			return nil
		case <-s.after(next.Sub(s.now())):
		}

		if err := s.job(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("daily job failed", zap.Error(err))
		}
	}
}

// nextRun returns the first configured wall-clock time strictly after now.
func (s *DailyScheduler) nextRun(now time.Time) time.Time {
	local := now.In(s.location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.location)
	}
	return next
}
