package storage

import (
	"encoding/json"
	"errors"

	"github.com/adventkit/adventkit/internal/calendar"
	"gorm.io/gorm"
)

// ErrLibraryItemNotFound indicates an operation on a library id with no row.
var ErrLibraryItemNotFound = errors.New("storage: library item not found")

// AddToLibrary records a snapshot of the calendar in the library index.
func (s *Store) AddToLibrary(cal calendar.Calendar, itemType calendar.LibraryItemType) (calendar.LibraryItem, error) {
	snapshot, err := json.Marshal(cal)
	if err != nil {
		return calendar.LibraryItem{}, newStoreError(opLibraryAccess, "encode_failed", err)
	}
	itemID, err := s.idProvider.NewID()
	if err != nil {
		return calendar.LibraryItem{}, newStoreError(opLibraryAccess, "id_generation_failed", err)
	}

	item := calendar.LibraryItem{
		ID:           itemID,
		Type:         itemType,
		Title:        cal.Title,
		DateAdded:    s.clock().UTC(),
		CalendarJSON: string(snapshot),
	}
	if err := s.library.Create(&item).Error; err != nil {
		return calendar.LibraryItem{}, newStoreError(opLibraryAccess, "insert_failed", err)
	}
	return item, nil
}

// ListLibraryItems returns every snapshot, pinned items first, then by the
// order they were added. An empty library yields an empty slice, not an error.
func (s *Store) ListLibraryItems() ([]calendar.LibraryItem, error) {
	var items []calendar.LibraryItem
	if err := s.library.
		Order("is_pinned DESC").
		Order("date_added ASC").
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, newStoreError(opLibraryAccess, "query_failed", err)
	}
	return items, nil
}

// SetLibraryItemPinned toggles the pinned flag of one library entry.
func (s *Store) SetLibraryItemPinned(itemID string, pinned bool) error {
	result := s.library.Model(&calendar.LibraryItem{}).
		Where("id = ?", itemID).
		Update("is_pinned", pinned)
	if result.Error != nil {
		return newStoreError(opLibraryAccess, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLibraryItemNotFound
	}
	return nil
}

// DeleteLibraryItem removes one snapshot from the index.
func (s *Store) DeleteLibraryItem(itemID string) error {
	result := s.library.Where("id = ?", itemID).Delete(&calendar.LibraryItem{})
	if result.Error != nil {
		return newStoreError(opLibraryAccess, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLibraryItemNotFound
	}
	return nil
}

// LoadLibraryCalendar decodes the calendar snapshot embedded in one library
// entry, for the load-from-library flow.
func (s *Store) LoadLibraryCalendar(itemID string) (calendar.Calendar, error) {
	var item calendar.LibraryItem
	err := s.library.Where("id = ?", itemID).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return calendar.Calendar{}, ErrLibraryItemNotFound
	}
	if err != nil {
		return calendar.Calendar{}, newStoreError(opLibraryAccess, "query_failed", err)
	}

	var cal calendar.Calendar
	if err := json.Unmarshal([]byte(item.CalendarJSON), &cal); err != nil {
		return calendar.Calendar{}, newStoreError(opLibraryAccess, "decode_failed", err)
	}
	return cal, nil
}
