package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
)

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

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		RootDir:    t.TempDir(),
		Strict:     true,
		Clock:      fixedClock(time.Date(2026, time.November, 20, 10, 0, 0, 0, time.UTC)),
		IDProvider: &sequentialIDProvider{},
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store
}

func asImportError(t *testing.T, err error) *ImportError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected an import error")
	}
	var importErr *ImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("expected *ImportError, got %T: %v", err, err)
	}
	return importErr
}

func keysOf(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}

func testCalendar(t *testing.T, doorCount int) calendar.Calendar {
	t.Helper()
	cal, err := calendar.GenerateDaily(calendar.GeneratorConfig{
		Title:      "Winter Countdown",
		IDProvider: &sequentialIDProvider{next: 100},
	}, time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), doorCount)
	if err != nil {
		t.Fatalf("unexpected generation error: %v", err)
	}
	return cal
}
