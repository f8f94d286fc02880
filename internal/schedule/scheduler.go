// Package schedule decides when doors transition from locked to unlocked and
// arranges unlock reminders with the external notification service.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"github.com/adventkit/adventkit/internal/state"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultTickSpec     = "@every 1s"
	defaultReminderLead = 10 * time.Minute
)

var (
	errMissingManager = errors.New("state manager is required")
	noOpLogger        = zap.NewNop()
)

const (
	opSchedulerNew = "schedule.scheduler.new"
	opTick         = "schedule.tick"
	opReminders    = "schedule.reminders"
	opRun          = "schedule.run"
)

// Notifier is the external local-notification service. Calls are best-effort
// and fire-and-forget: a failed schedule request is logged, never retried.
type Notifier interface {
	Schedule(id string, fireAt time.Time, title, body string) error
	Cancel(ids []string)
}

// SchedulerConfig captures the scheduler's dependencies.
type SchedulerConfig struct {
	Manager  *state.Manager
	Notifier Notifier
	Clock    func() time.Time
	Logger   *zap.Logger
	// ReminderLead is how long before the unlock instant the heads-up
	// notification fires. Defaults to ten minutes.
	ReminderLead time.Duration
	// TickSpec is the cron spec driving the periodic check. The check is
	// idempotent and safe at any cadence.
	TickSpec string
}

// Scheduler derives door unlock state from the current time and commits
// transitions through the state manager.
type Scheduler struct {
	manager      *state.Manager
	notifier     Notifier
	clock        func() time.Time
	logger       *zap.Logger
	reminderLead time.Duration
	tickSpec     string
}

// NewScheduler validates dependencies and applies defaults.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("%s.missing_manager: %w", opSchedulerNew, errMissingManager)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	lead := cfg.ReminderLead
	if lead <= 0 {
		lead = defaultReminderLead
	}
	tickSpec := cfg.TickSpec
	if tickSpec == "" {
		tickSpec = defaultTickSpec
	}

	return &Scheduler{
		manager:      cfg.Manager,
		notifier:     notifier,
		clock:        clock,
		logger:       logger,
		reminderLead: lead,
		tickSpec:     tickSpec,
	}, nil
}

// Tick performs one unlock check: every door whose unlock date has been
// reached at day granularity and is still locked transitions to unlocked
// through the state manager's silent-update path. Unlocking is a pure
// function of the current time versus the unlock date, so doors whose dates
// passed while the process was down transition retroactively on the first
// tick after relaunch. Returns the number of doors transitioned.
func (s *Scheduler) Tick() int {
	cal := s.manager.Calendar()
	now := s.clock()

	transitioned := 0
	for _, door := range cal.Doors {
		if door.IsUnlocked || !door.UnlocksOnOrBefore(now) {
			continue
		}
		door.IsUnlocked = true
		s.manager.SilentlyUpdateDoor(door)
		transitioned++
		s.logger.Info("door unlocked",
			zap.String("operation", opTick),
			zap.Int("door", door.Number))
	}
	return transitioned
}

// Countdown is the remaining time to the nearest future door that has not
// been opened yet. Purely a display projection.
type Countdown struct {
	DoorNumber int
	Days       int
	Hours      int
	Minutes    int
}

// Countdown projects the time remaining until the next unopened door's unlock
// day begins. The second return is false when no future unopened door exists.
func (s *Scheduler) Countdown() (Countdown, bool) {
	cal := s.manager.Calendar()
	now := s.clock()

	var nearest *calendar.Door
	for i := range cal.Doors {
		door := cal.Doors[i]
		if door.HasBeenOpened || door.UnlocksOnOrBefore(now) {
			continue
		}
		if nearest == nil || door.UnlockDate.Before(nearest.UnlockDate) {
			nearest = &cal.Doors[i]
		}
	}
	if nearest == nil {
		return Countdown{}, false
	}

	remaining := calendar.DayOf(nearest.UnlockDate.In(now.Location())).Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return Countdown{
		DoorNumber: nearest.Number,
		Days:       int(remaining / (24 * time.Hour)),
		Hours:      int(remaining % (24 * time.Hour) / time.Hour),
		Minutes:    int(remaining % time.Hour / time.Minute),
	}, true
}

// ReminderIdentifiers derives the deterministic notification ids for one door
// number: the heads-up reminder and the unlock instant itself. Re-requesting
// with the same ids is idempotent at the notification service, and
// cancellation recomputes them to target a specific door.
func ReminderIdentifiers(doorNumber int) (reminderID, unlockID string) {
	return fmt.Sprintf("door_%d_reminder", doorNumber), fmt.Sprintf("door_%d_unlock", doorNumber)
}

// ScheduleReminders requests, for every door with a future unlock date that
// has not been opened, a heads-up notification before unlock and one at the
// unlock instant. Called once on calendar load, not on every tick.
func (s *Scheduler) ScheduleReminders() {
	cal := s.manager.Calendar()
	now := s.clock()

	for _, door := range cal.Doors {
		if door.HasBeenOpened || door.UnlocksOnOrBefore(now) {
			continue
		}
		unlockAt := calendar.DayOf(door.UnlockDate.In(now.Location()))
		reminderID, unlockID := ReminderIdentifiers(door.Number)

		if err := s.notifier.Schedule(reminderID, unlockAt.Add(-s.reminderLead),
			"Almost time!",
			fmt.Sprintf("Door %d unlocks soon.", door.Number)); err != nil {
			s.logWarn(opReminders, "schedule_failed", err, door.Number)
		}
		if err := s.notifier.Schedule(unlockID, unlockAt,
			"A door just unlocked!",
			fmt.Sprintf("Door %d is ready to open.", door.Number)); err != nil {
			s.logWarn(opReminders, "schedule_failed", err, door.Number)
		}
	}
}

// CancelReminders withdraws both pending notifications for one door.
func (s *Scheduler) CancelReminders(doorNumber int) {
	reminderID, unlockID := ReminderIdentifiers(doorNumber)
	s.notifier.Cancel([]string{reminderID, unlockID})
}

// Run drives Tick on the configured cadence until the context is done.
func (s *Scheduler) Run(ctx context.Context) error {
	runner := cron.New()
	if _, err := runner.AddFunc(s.tickSpec, func() { s.Tick() }); err != nil {
		return fmt.Errorf("%s.invalid_tick_spec: %w", opRun, err)
	}
	runner.Start()
	<-ctx.Done()
	stopped := runner.Stop()
	<-stopped.Done()
	return ctx.Err()
}

func (s *Scheduler) logWarn(operation, reason string, err error, doorNumber int) {
	s.logger.Warn("scheduler failure",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Int("door", doorNumber),
		zap.Error(err))
}
