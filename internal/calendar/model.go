package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ContentKind enumerates the supported door content variants.
type ContentKind string

const (
	// ContentKindText is plain user-entered text.
	ContentKindText ContentKind = "text"
	// ContentKindImage references an image blob in the media store.
	ContentKindImage ContentKind = "image"
	// ContentKindVideo references a video blob in the media store.
	ContentKindVideo ContentKind = "video"
)

var (
	// ErrUnknownContentKind indicates a content payload with an unrecognized tag.
	ErrUnknownContentKind = errors.New("calendar: unknown content kind")
	// ErrInvalidDoorCount indicates a generation request for a non-positive door count.
	ErrInvalidDoorCount = errors.New("calendar: door count must be positive")
	// ErrNoDates indicates a specific-date generation request with no dates.
	ErrNoDates = errors.New("calendar: at least one unlock date is required")
)

// Content is a closed variant over text, image and video payloads. Exactly one
// payload field is meaningful for a given Kind: Text for text content, MediaID
// for image and video content.
type Content struct {
	Kind    ContentKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	MediaID string      `json:"mediaId,omitempty"`
}

// TextContent builds a plain text content value.
func TextContent(text string) Content {
	return Content{Kind: ContentKindText, Text: text}
}

// ImageContent builds an image content value referencing a media identifier.
func ImageContent(mediaID string) Content {
	return Content{Kind: ContentKindImage, MediaID: mediaID}
}

// VideoContent builds a video content value referencing a media identifier.
func VideoContent(mediaID string) Content {
	return Content{Kind: ContentKindVideo, MediaID: mediaID}
}

// MediaReference returns the media identifier for image and video content. The
// second return is false for text content or an empty reference.
func (c Content) MediaReference() (string, bool) {
	switch c.Kind {
	case ContentKindImage, ContentKindVideo:
		return c.MediaID, c.MediaID != ""
	case ContentKindText:
		return "", false
	default:
		return "", false
	}
}

// Validate checks that the content tag is one of the known kinds.
func (c Content) Validate() error {
	switch c.Kind {
	case ContentKindText, ContentKindImage, ContentKindVideo:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownContentKind, c.Kind)
	}
}

// Reaction records a single emoji response left on a door.
type Reaction struct {
	ID        string    `json:"id"`
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ColorValue carries a color as four independent floating-point channels.
type ColorValue struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
	Alpha float64 `json:"alpha"`
}

// Background describes the calendar backdrop. ImageID and Color are mutually
// exclusive: a non-empty ImageID wins and Color must be nil, and vice versa.
type Background struct {
	ImageID string      `json:"imageId,omitempty"`
	Color   *ColorValue `json:"color,omitempty"`
}

// Door is one numbered, dated cell of a calendar.
type Door struct {
	ID            string     `json:"id"`
	Number        int        `json:"number"`
	UnlockDate    time.Time  `json:"unlockDate"`
	IsUnlocked    bool       `json:"isUnlocked"`
	HasBeenOpened bool       `json:"hasBeenOpened"`
	Content       Content    `json:"content"`
	Reactions     []Reaction `json:"reactions,omitempty"`
}

// ReactionCounts groups the door's reactions by emoji.
func (d Door) ReactionCounts() map[string]int {
	counts := make(map[string]int, len(d.Reactions))
	for _, reaction := range d.Reactions {
		counts[reaction.Emoji]++
	}
	return counts
}

// HasReacted reports whether the given user already left a reaction on the door.
func (d Door) HasReacted(userID string) bool {
	for _, reaction := range d.Reactions {
		if reaction.UserID == userID {
			return true
		}
	}
	return false
}

// ContentType returns the door content's variant tag.
func (d Door) ContentType() ContentKind {
	return d.Content.Kind
}

// Clone returns a deep copy of the door, including its reaction list.
func (d Door) Clone() Door {
	cloned := d
	if d.Reactions != nil {
		cloned.Reactions = make([]Reaction, len(d.Reactions))
		copy(cloned.Reactions, d.Reactions)
	}
	return cloned
}

// Calendar is the named container of doors. Door numbers are unique and dense
// over 1..len(Doors), in slice order.
type Calendar struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	Doors       []Door      `json:"doors"`
	GridColumns int         `json:"gridColumns"`
	Background  Background  `json:"background"`
	DoorColor   *ColorValue `json:"doorColor,omitempty"`
}

// DoorByID locates a door by its opaque identifier.
func (c Calendar) DoorByID(doorID string) (Door, bool) {
	for _, door := range c.Doors {
		if door.ID == doorID {
			return door.Clone(), true
		}
	}
	return Door{}, false
}

// DoorByNumber locates a door by its 1-based number.
func (c Calendar) DoorByNumber(number int) (Door, bool) {
	for _, door := range c.Doors {
		if door.Number == number {
			return door.Clone(), true
		}
	}
	return Door{}, false
}

// Clone returns a deep copy of the calendar, safe to hand to observers.
func (c Calendar) Clone() Calendar {
	cloned := c
	if c.Doors != nil {
		cloned.Doors = make([]Door, len(c.Doors))
		for i, door := range c.Doors {
			cloned.Doors[i] = door.Clone()
		}
	}
	if c.DoorColor != nil {
		colorCopy := *c.DoorColor
		cloned.DoorColor = &colorCopy
	}
	if c.Background.Color != nil {
		colorCopy := *c.Background.Color
		cloned.Background.Color = &colorCopy
	}
	return cloned
}

// Validate checks structural invariants: dense door numbering and known
// content kinds.
func (c Calendar) Validate() error {
	for i, door := range c.Doors {
		if door.Number != i+1 {
			return fmt.Errorf("calendar: door at index %d has number %d, want %d", i, door.Number, i+1)
		}
		if err := door.Content.Validate(); err != nil {
			return err
		}
	}
	if c.Background.ImageID != "" && c.Background.Color != nil {
		return errors.New("calendar: background image and color are mutually exclusive")
	}
	return nil
}

// DayOf truncates an instant to the start of its calendar day in the instant's
// own location. Unlocking compares at day granularity only.
func DayOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// UnlocksOnOrBefore reports whether the door's unlock date, compared at day
// granularity, has been reached at the given instant.
func (d Door) UnlocksOnOrBefore(now time.Time) bool {
	return !DayOf(d.UnlockDate.In(now.Location())).After(DayOf(now))
}
