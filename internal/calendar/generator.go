package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	defaultDoorCount   = 24
	defaultGridColumns = 4
	defaultTitle       = "My Calendar"
)

// GeneratorConfig carries the inputs shared by both generation modes.
type GeneratorConfig struct {
	Title       string
	GridColumns int
	Background  Background
	DoorColor   *ColorValue
	IDProvider  IDProvider
}

// GenerateDaily builds a calendar whose doors unlock on consecutive days
// starting at the given date. Doors are numbered 1..count in date order.
func GenerateDaily(cfg GeneratorConfig, start time.Time, count int) (Calendar, error) {
	if count <= 0 {
		return Calendar{}, fmt.Errorf("%w: %d", ErrInvalidDoorCount, count)
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Count:   count,
		Dtstart: DayOf(start),
	})
	if err != nil {
		return Calendar{}, fmt.Errorf("calendar: recurrence expansion failed: %w", err)
	}

	return assemble(cfg, rule.All())
}

// GenerateWithDates builds a calendar with one door per supplied date, in the
// supplied order. Dates are not required to be distinct or sorted.
func GenerateWithDates(cfg GeneratorConfig, dates []time.Time) (Calendar, error) {
	if len(dates) == 0 {
		return Calendar{}, ErrNoDates
	}
	normalized := make([]time.Time, len(dates))
	for i, date := range dates {
		normalized[i] = DayOf(date)
	}
	return assemble(cfg, normalized)
}

// NewDefault builds the calendar installed on first launch and on reset: a
// daily 24-door grid starting December 1st of the current year.
func NewDefault(idProvider IDProvider, clock func() time.Time) (Calendar, error) {
	now := clock()
	start := time.Date(now.Year(), time.December, 1, 0, 0, 0, 0, now.Location())
	return GenerateDaily(GeneratorConfig{
		Title:       defaultTitle,
		GridColumns: defaultGridColumns,
		IDProvider:  idProvider,
	}, start, defaultDoorCount)
}

func assemble(cfg GeneratorConfig, unlockDates []time.Time) (Calendar, error) {
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}

	title := cfg.Title
	if title == "" {
		title = defaultTitle
	}
	columns := cfg.GridColumns
	if columns <= 0 {
		columns = defaultGridColumns
	}

	calendarID, err := idProvider.NewID()
	if err != nil {
		return Calendar{}, fmt.Errorf("calendar: id generation failed: %w", err)
	}

	doors := make([]Door, len(unlockDates))
	for i, unlockDate := range unlockDates {
		doorID, err := idProvider.NewID()
		if err != nil {
			return Calendar{}, fmt.Errorf("calendar: id generation failed: %w", err)
		}
		doors[i] = Door{
			ID:         doorID,
			Number:     i + 1,
			UnlockDate: unlockDate,
			Content:    TextContent(fmt.Sprintf("Door %d", i+1)),
		}
	}

	start, end := dateSpan(unlockDates)
	return Calendar{
		ID:          calendarID,
		Title:       title,
		StartDate:   start,
		EndDate:     end,
		Doors:       doors,
		GridColumns: columns,
		Background:  cfg.Background,
		DoorColor:   cfg.DoorColor,
	}, nil
}

func dateSpan(dates []time.Time) (time.Time, time.Time) {
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[0], sorted[len(sorted)-1]
}
