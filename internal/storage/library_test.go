package storage

import (
	"errors"
	"testing"

	"github.com/adventkit/adventkit/internal/calendar"
)

func TestEmptyLibraryListsNothing(t *testing.T) {
	store := newTestStore(t)
	items, err := store.ListLibraryItems()
	if err != nil {
		t.Fatalf("an empty library must not be an error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty library, got %d items", len(items))
	}
}

func TestAddToLibraryRecordsMetadata(t *testing.T) {
	store := newTestStore(t)
	cal := testCalendar(t, 2)

	item, err := store.AddToLibrary(cal, calendar.LibraryItemTypeExported)
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if item.ID == "" {
		t.Fatalf("expected an id to be minted")
	}
	if item.Type != calendar.LibraryItemTypeExported {
		t.Fatalf("unexpected type %q", item.Type)
	}
	if item.Title != cal.Title {
		t.Fatalf("unexpected title %q", item.Title)
	}
	if item.IsPinned {
		t.Fatalf("new items must start unpinned")
	}
	if item.DateAdded.IsZero() {
		t.Fatalf("expected dateAdded to be set")
	}
}

func TestListLibraryItemsPinnedFirst(t *testing.T) {
	store := newTestStore(t)

	first, err := store.AddToLibrary(testCalendar(t, 1), calendar.LibraryItemTypeExported)
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	second, err := store.AddToLibrary(testCalendar(t, 2), calendar.LibraryItemTypeImported)
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	if err := store.SetLibraryItemPinned(second.ID, true); err != nil {
		t.Fatalf("unexpected pin error: %v", err)
	}

	items, err := store.ListLibraryItems()
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != second.ID {
		t.Fatalf("pinned item must sort first, got %q", items[0].ID)
	}
	if items[1].ID != first.ID {
		t.Fatalf("unpinned item must follow, got %q", items[1].ID)
	}
}

func TestUnpinRestoresInsertionOrder(t *testing.T) {
	store := newTestStore(t)

	first, _ := store.AddToLibrary(testCalendar(t, 1), calendar.LibraryItemTypeExported)
	second, _ := store.AddToLibrary(testCalendar(t, 2), calendar.LibraryItemTypeExported)

	if err := store.SetLibraryItemPinned(second.ID, true); err != nil {
		t.Fatalf("unexpected pin error: %v", err)
	}
	if err := store.SetLibraryItemPinned(second.ID, false); err != nil {
		t.Fatalf("unexpected unpin error: %v", err)
	}

	items, err := store.ListLibraryItems()
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if items[0].ID != first.ID || items[1].ID != second.ID {
		t.Fatalf("expected insertion order after unpin")
	}
}

func TestDeleteLibraryItem(t *testing.T) {
	store := newTestStore(t)

	item, err := store.AddToLibrary(testCalendar(t, 1), calendar.LibraryItemTypeImported)
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if err := store.DeleteLibraryItem(item.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	items, err := store.ListLibraryItems()
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty library after delete")
	}
}

func TestLibraryOperationsOnUnknownID(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetLibraryItemPinned("missing", true); !errors.Is(err, ErrLibraryItemNotFound) {
		t.Fatalf("expected ErrLibraryItemNotFound, got %v", err)
	}
	if err := store.DeleteLibraryItem("missing"); !errors.Is(err, ErrLibraryItemNotFound) {
		t.Fatalf("expected ErrLibraryItemNotFound, got %v", err)
	}
	if _, err := store.LoadLibraryCalendar("missing"); !errors.Is(err, ErrLibraryItemNotFound) {
		t.Fatalf("expected ErrLibraryItemNotFound, got %v", err)
	}
}

func TestLoadLibraryCalendarRoundTrip(t *testing.T) {
	store := newTestStore(t)
	cal := testCalendar(t, 4)
	cal.Doors[2].IsUnlocked = true
	cal.Doors[2].HasBeenOpened = true

	item, err := store.AddToLibrary(cal, calendar.LibraryItemTypeExported)
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}

	loaded, err := store.LoadLibraryCalendar(item.ID)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Title != cal.Title || len(loaded.Doors) != 4 {
		t.Fatalf("snapshot changed across the library: %q with %d doors", loaded.Title, len(loaded.Doors))
	}
	if !loaded.Doors[2].HasBeenOpened {
		t.Fatalf("door state lost in the snapshot")
	}
}
