package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"github.com/adventkit/adventkit/internal/storage"
)

const testUserID = "install-1"

type sequentialIDProvider struct {
	next int
}

func (p *sequentialIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestManager(t *testing.T) (*Manager, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(storage.StoreConfig{
		RootDir: t.TempDir(),
		Strict:  true,
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	manager, err := NewManager(ManagerConfig{
		Store:      store,
		Clock:      fixedClock(time.Date(2026, time.November, 25, 9, 0, 0, 0, time.UTC)),
		IDProvider: &sequentialIDProvider{},
		UserID:     testUserID,
	})
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	return manager, store
}

func initializedManager(t *testing.T, doorCount int) *Manager {
	t.Helper()
	manager, _ := newTestManager(t)
	if err := manager.Initialize(); err != nil {
		t.Fatalf("unexpected initialize error: %v", err)
	}
	manager.Reset(testCalendar(t, doorCount))
	return manager
}

func testCalendar(t *testing.T, doorCount int) calendar.Calendar {
	t.Helper()
	cal, err := calendar.GenerateDaily(calendar.GeneratorConfig{
		Title:      "Test Calendar",
		IDProvider: calendar.NewUUIDProvider(),
	}, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), doorCount)
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	return cal
}

func receiveDoor(t *testing.T, stream <-chan calendar.Door) calendar.Door {
	t.Helper()
	select {
	case door := <-stream:
		return door
	case <-time.After(time.Second):
		t.Fatalf("no door delivered within a second")
		return calendar.Door{}
	}
}
