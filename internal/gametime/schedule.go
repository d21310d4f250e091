// Package gametime computes quest reset boundaries and drives periodic
// quest maintenance (resets and expiry sweeps).
package gametime

import (
	"sync"
	"time"
)

const (
	HoursPerDay = 24
	DaysPerWeek = 7
)

// Schedule says when daily and weekly quests reset. Weekly resets happen
// at the daily hour on WeeklyDay. All times are UTC.
type Schedule struct {
	DailyHour int          // 0-23
	WeeklyDay time.Weekday // day of the weekly reset
}

// DefaultSchedule resets at 04:00 UTC, weekly on Monday
func DefaultSchedule() Schedule {
	return Schedule{DailyHour: 4, WeeklyDay: time.Monday}
}

func (s Schedule) hour() int {
	if s.DailyHour < 0 || s.DailyHour >= HoursPerDay {
		return 0
	}
	return s.DailyHour
}

// LastDaily returns the most recent daily boundary at or before t
func (s Schedule) LastDaily(t time.Time) time.Time {
	t = t.UTC()
	b := time.Date(t.Year(), t.Month(), t.Day(), s.hour(), 0, 0, 0, time.UTC)
	if b.After(t) {
		b = b.AddDate(0, 0, -1)
	}
	return b
}

// NextDaily returns the first daily boundary strictly after t
func (s Schedule) NextDaily(t time.Time) time.Time {
	return s.LastDaily(t).AddDate(0, 0, 1)
}

// LastWeekly returns the most recent weekly boundary at or before t
func (s Schedule) LastWeekly(t time.Time) time.Time {
	b := s.LastDaily(t)
	back := (int(b.Weekday()) - int(s.WeeklyDay) + DaysPerWeek) % DaysPerWeek
	return b.AddDate(0, 0, -back)
}

// NextWeekly returns the first weekly boundary strictly after t
func (s Schedule) NextWeekly(t time.Time) time.Time {
	return s.LastWeekly(t).AddDate(0, 0, DaysPerWeek)
}

// Handlers are invoked by the Scheduler. Either may be nil.
type Handlers struct {
	Sweep func(now time.Time)      // every tick
	Reset func(boundary time.Time) // each time a daily boundary passes
}

// Scheduler ticks at a fixed interval, sweeping every tick and firing
// Reset whenever a daily boundary has passed since the previous one.
type Scheduler struct {
	schedule Schedule
	interval time.Duration
	handlers Handlers
	now      func() time.Time

	mu       sync.Mutex
	next     time.Time
	shutdown chan struct{}
	once     sync.Once
}

// NewScheduler creates a scheduler. now may be nil to use the wall clock.
func NewScheduler(schedule Schedule, interval time.Duration, handlers Handlers, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		schedule: schedule,
		interval: interval,
		handlers: handlers,
		now:      now,
		next:     schedule.NextDaily(now()),
		shutdown: make(chan struct{}),
	}
}

// Start runs the ticker in a goroutine until Stop is called
func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Stop ends the ticker. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.shutdown)
	})
}

// Tick runs one round of maintenance as of now
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	due := !now.Before(s.next)
	if due {
		s.next = s.schedule.NextDaily(now)
	}
	s.mu.Unlock()

	if s.handlers.Sweep != nil {
		s.handlers.Sweep(now)
	}
	if due && s.handlers.Reset != nil {
		s.handlers.Reset(s.schedule.LastDaily(now))
	}
}

// NextReset returns when Reset will next fire
func (s *Scheduler) NextReset() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
