package calendar

import "time"

// LibraryItemType distinguishes how a snapshot entered the library.
type LibraryItemType string

const (
	// LibraryItemTypeExported marks a snapshot taken when the user exported
	// the active calendar.
	LibraryItemTypeExported LibraryItemType = "exported"
	// LibraryItemTypeImported marks a snapshot recorded on successful bundle
	// import.
	LibraryItemTypeImported LibraryItemType = "imported"
)

// LibraryItem wraps a calendar snapshot with library metadata. The snapshot
// itself is stored as its JSON document so the index never needs migrating
// when the calendar shape grows a field.
type LibraryItem struct {
	ID           string          `gorm:"column:id;primaryKey;size:190;not null"`
	Type         LibraryItemType `gorm:"column:item_type;size:32;not null"`
	Title        string          `gorm:"column:title;size:320;not null"`
	DateAdded    time.Time       `gorm:"column:date_added;not null;index"`
	IsPinned     bool            `gorm:"column:is_pinned;not null;default:false"`
	CalendarJSON string          `gorm:"column:calendar_json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (LibraryItem) TableName() string {
	return "library_items"
}
