// Package scheduler drives the daily pipeline: content generation in the
// early morning, delivery at breakfast time, then sleep until the next
// day. Times are local wall-clock times; the host timezone decides what
// "06:00" means.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"foreversister/internal/types"
)

// ContentGenerator runs content generation for the day of now.
type ContentGenerator interface {
	Run(ctx context.Context, now time.Time, overwrite bool) error
}

// MailDeliverer delivers the cached content for a date key.
type MailDeliverer interface {
	Send(ctx context.Context, date string) (bool, error)
}

// Daily is the long-running daily loop.
type Daily struct {
	generator ContentGenerator
	deliverer MailDeliverer
	logger    *slog.Logger

	generateHour, generateMin int
	deliverHour, deliverMin   int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// DailyOption is a functional option for configuring a Daily scheduler.
type DailyOption func(*Daily)

// WithClock overrides the time source and sleep function, for testing.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) DailyOption {
	return func(s *Daily) {
		s.now = now
		s.sleep = sleep
	}
}

// NewDaily creates the daily scheduler. generateAt and deliverAt are local
// wall-clock times in "HH:MM" form; generation must precede delivery
// within the day for delivery to find the fresh cache, but the scheduler
// does not enforce an ordering — a late-started process simply runs
// whatever is already due.
func NewDaily(generator ContentGenerator, deliverer MailDeliverer, generateAt, deliverAt string, logger *slog.Logger, opts ...DailyOption) (*Daily, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gh, gm, err := parseTimeOfDay(generateAt)
	if err != nil {
		return nil, fmt.Errorf("invalid generate time: %w", err)
	}
	dh, dm, err := parseTimeOfDay(deliverAt)
	if err != nil {
		return nil, fmt.Errorf("invalid deliver time: %w", err)
	}

	s := &Daily{
		generator:    generator,
		deliverer:    deliverer,
		logger:       logger,
		generateHour: gh,
		generateMin:  gm,
		deliverHour:  dh,
		deliverMin:   dm,
		now:          time.Now,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes the daily loop until ctx is cancelled. Each day it waits
// for the generation time, generates, waits for the delivery time,
// delivers, then sleeps to the next midnight. A step that is already past
// due (a process started mid-day) runs immediately; the generator's
// cache-exists skip and the sender's sent marker make the re-runs
// harmless.
//
// Step failures are logged and the loop carries on: a broken morning must
// not take the subscription API down with it.
func (s *Daily) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"generate_at", fmt.Sprintf("%02d:%02d", s.generateHour, s.generateMin),
		"deliver_at", fmt.Sprintf("%02d:%02d", s.deliverHour, s.deliverMin),
	)

	for {
		if err := s.waitUntil(ctx, s.generateHour, s.generateMin); err != nil {
			return err
		}
		if err := s.generator.Run(ctx, s.now(), false); err != nil {
			s.logger.ErrorContext(ctx, "content generation failed", "error", err)
		}

		if err := s.waitUntil(ctx, s.deliverHour, s.deliverMin); err != nil {
			return err
		}
		date := types.DateKey(s.now())
		if sent, err := s.deliverer.Send(ctx, date); err != nil {
			s.logger.ErrorContext(ctx, "delivery failed", "date", date, "error", err)
		} else if sent {
			s.logger.InfoContext(ctx, "delivery complete", "date", date)
		}

		if err := s.sleepToNextMidnight(ctx); err != nil {
			return err
		}
	}
}

// waitUntil sleeps until the given local time of day today. It returns
// immediately when the time has already passed.
func (s *Daily) waitUntil(ctx context.Context, hour, minute int) error {
	now := s.now()
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !target.After(now) {
		return nil
	}
	return s.sleep(ctx, target.Sub(now))
}

// sleepToNextMidnight sleeps until the start of the next calendar day.
func (s *Daily) sleepToNextMidnight(ctx context.Context) error {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return s.sleep(ctx, midnight.Sub(now))
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseTimeOfDay parses a "HH:MM" string into hour and minute components.
// The input must be exactly in HH:MM format; trailing content is rejected.
func parseTimeOfDay(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	var hour, minute int
	n, err := fmt.Sscanf(s, "%d:%d", &hour, &minute)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("expected format HH:MM, got %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour %d out of range [0,23]", hour)
	}
	if minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute %d out of range [0,59]", minute)
	}
	return hour, minute, nil
}
