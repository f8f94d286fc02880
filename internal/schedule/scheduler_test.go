package schedule

import (
	"sync"
	"testing"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"github.com/adventkit/adventkit/internal/state"
	"github.com/adventkit/adventkit/internal/storage"
)

type notificationRequest struct {
	ID     string
	FireAt time.Time
	Title  string
	Body   string
}

type recordingNotifier struct {
	mu        sync.Mutex
	scheduled []notificationRequest
	cancelled []string
}

func (n *recordingNotifier) Schedule(id string, fireAt time.Time, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.scheduled = append(n.scheduled, notificationRequest{ID: id, FireAt: fireAt, Title: title, Body: body})
	return nil
}

func (n *recordingNotifier) Cancel(ids []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, ids...)
}

// deliverableIDs reports the distinct identifiers currently scheduled; a
// replace-or-ignore notification service collapses repeats of the same id
// into one deliverable notification.
func (n *recordingNotifier) deliverableIDs() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	distinct := make(map[string]int)
	for _, request := range n.scheduled {
		distinct[request.ID]++
	}
	return distinct
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var testNow = time.Date(2026, time.December, 2, 14, 30, 0, 0, time.UTC)

// newTestScheduler builds a manager holding three doors unlocking yesterday,
// today and tomorrow relative to testNow.
func newTestScheduler(t *testing.T) (*Scheduler, *state.Manager, *recordingNotifier) {
	t.Helper()

	store, err := storage.NewStore(storage.StoreConfig{RootDir: t.TempDir(), Strict: true})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	manager, err := state.NewManager(state.ManagerConfig{
		Store:  store,
		Clock:  fixedClock(testNow),
		UserID: "install-1",
	})
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	if err := manager.Initialize(); err != nil {
		t.Fatalf("unexpected initialize error: %v", err)
	}

	cal, err := calendar.GenerateDaily(calendar.GeneratorConfig{Title: "Three Doors"},
		testNow.AddDate(0, 0, -1), 3)
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	manager.Reset(cal)

	notifier := &recordingNotifier{}
	scheduler, err := NewScheduler(SchedulerConfig{
		Manager:  manager,
		Notifier: notifier,
		Clock:    fixedClock(testNow),
	})
	if err != nil {
		t.Fatalf("unexpected scheduler error: %v", err)
	}
	return scheduler, manager, notifier
}

func TestTickUnlocksDueDoorsOnly(t *testing.T) {
	scheduler, manager, _ := newTestScheduler(t)

	if transitioned := scheduler.Tick(); transitioned != 2 {
		t.Fatalf("expected doors 1 and 2 to transition, got %d", transitioned)
	}

	cal := manager.Calendar()
	if !cal.Doors[0].IsUnlocked {
		t.Fatalf("door 1 (yesterday) must be unlocked")
	}
	if !cal.Doors[1].IsUnlocked {
		t.Fatalf("door 2 (today) must be unlocked")
	}
	if cal.Doors[2].IsUnlocked {
		t.Fatalf("door 3 (tomorrow) must stay locked")
	}
}

func TestTickIsIdempotent(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	if transitioned := scheduler.Tick(); transitioned != 2 {
		t.Fatalf("first tick transitioned %d doors", transitioned)
	}
	if transitioned := scheduler.Tick(); transitioned != 0 {
		t.Fatalf("second tick must transition nothing, got %d", transitioned)
	}
}

func TestTickUnlocksRetroactively(t *testing.T) {
	// A door whose unlock day passed while the process was down transitions
	// on the first tick after relaunch; there is no missed-window concept.
	_, manager, _ := newTestScheduler(t)

	lateClock := fixedClock(testNow.AddDate(0, 1, 0))
	lateScheduler, err := NewScheduler(SchedulerConfig{
		Manager:  manager,
		Notifier: &recordingNotifier{},
		Clock:    lateClock,
	})
	if err != nil {
		t.Fatalf("unexpected scheduler error: %v", err)
	}
	if transitioned := lateScheduler.Tick(); transitioned != 3 {
		t.Fatalf("expected all 3 doors to unlock a month later, got %d", transitioned)
	}
}

func TestOpeningAffectsOnlyThatDoor(t *testing.T) {
	scheduler, manager, _ := newTestScheduler(t)
	scheduler.Tick()

	cal := manager.Calendar()
	if !manager.OpenDoor(cal.Doors[0].ID) {
		t.Fatalf("door 1 should open after unlocking")
	}

	cal = manager.Calendar()
	if !cal.Doors[0].HasBeenOpened {
		t.Fatalf("door 1 must be marked opened")
	}
	if cal.Doors[1].HasBeenOpened || cal.Doors[2].HasBeenOpened {
		t.Fatalf("opening door 1 must not touch the others")
	}
}

func TestCountdownTargetsNearestFutureUnopenedDoor(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	countdown, ok := scheduler.Countdown()
	if !ok {
		t.Fatalf("expected a countdown toward door 3")
	}
	if countdown.DoorNumber != 3 {
		t.Fatalf("countdown targets door %d, want 3", countdown.DoorNumber)
	}
	// testNow is 14:30; door 3 unlocks at next midnight, 9h30m away.
	if countdown.Days != 0 || countdown.Hours != 9 || countdown.Minutes != 30 {
		t.Fatalf("unexpected countdown %+v", countdown)
	}
}

func TestCountdownAbsentWhenNothingIsUpcoming(t *testing.T) {
	_, manager, _ := newTestScheduler(t)

	lateScheduler, err := NewScheduler(SchedulerConfig{
		Manager: manager,
		Clock:   fixedClock(testNow.AddDate(0, 0, 10)),
	})
	if err != nil {
		t.Fatalf("unexpected scheduler error: %v", err)
	}
	if _, ok := lateScheduler.Countdown(); ok {
		t.Fatalf("no future door remains, countdown must be absent")
	}
}

func TestReminderIdentifiersAreDeterministic(t *testing.T) {
	reminderID, unlockID := ReminderIdentifiers(7)
	if reminderID != "door_7_reminder" {
		t.Fatalf("unexpected reminder id %q", reminderID)
	}
	if unlockID != "door_7_unlock" {
		t.Fatalf("unexpected unlock id %q", unlockID)
	}
}

func TestScheduleRemindersCoversFutureUnopenedDoors(t *testing.T) {
	scheduler, _, notifier := newTestScheduler(t)

	scheduler.ScheduleReminders()

	// Only door 3 is in the future; doors 1 and 2 are already due.
	distinct := notifier.deliverableIDs()
	if len(distinct) != 2 {
		t.Fatalf("expected 2 notifications, got ids %v", distinct)
	}
	if _, ok := distinct["door_3_reminder"]; !ok {
		t.Fatalf("missing heads-up reminder for door 3")
	}
	if _, ok := distinct["door_3_unlock"]; !ok {
		t.Fatalf("missing unlock notification for door 3")
	}

	var reminderAt, unlockAt time.Time
	for _, request := range notifier.scheduled {
		switch request.ID {
		case "door_3_reminder":
			reminderAt = request.FireAt
		case "door_3_unlock":
			unlockAt = request.FireAt
		}
	}
	if got := unlockAt.Sub(reminderAt); got != defaultReminderLead {
		t.Fatalf("reminder lead is %v, want %v", got, defaultReminderLead)
	}
	wantUnlock := time.Date(2026, time.December, 3, 0, 0, 0, 0, time.UTC)
	if !unlockAt.Equal(wantUnlock) {
		t.Fatalf("unlock notification at %v, want %v", unlockAt, wantUnlock)
	}
}

func TestScheduleRemindersTwiceProducesSameDeliverables(t *testing.T) {
	scheduler, _, notifier := newTestScheduler(t)

	scheduler.ScheduleReminders()
	scheduler.ScheduleReminders()

	distinct := notifier.deliverableIDs()
	if len(distinct) != 2 {
		t.Fatalf("re-requesting must reuse the same ids, got %v", distinct)
	}
	for id, count := range distinct {
		if count != 2 {
			t.Fatalf("expected id %q to repeat exactly, got %d requests", id, count)
		}
	}
}

func TestCancelRemindersTargetsOneDoor(t *testing.T) {
	scheduler, _, notifier := newTestScheduler(t)

	scheduler.CancelReminders(3)

	if len(notifier.cancelled) != 2 {
		t.Fatalf("expected both ids cancelled, got %v", notifier.cancelled)
	}
	if notifier.cancelled[0] != "door_3_reminder" || notifier.cancelled[1] != "door_3_unlock" {
		t.Fatalf("unexpected cancellation ids %v", notifier.cancelled)
	}
}

func TestNewSchedulerRequiresManager(t *testing.T) {
	if _, err := NewScheduler(SchedulerConfig{}); err == nil {
		t.Fatalf("expected missing manager to be rejected")
	}
}
