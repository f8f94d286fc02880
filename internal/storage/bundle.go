package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adventkit/adventkit/internal/calendar"
	"go.uber.org/zap"
)

// BundleExtension is the dedicated file extension for exported calendars so
// the OS can treat them as an openable document type.
const BundleExtension = ".calbundle"

// CalendarBundle pairs a calendar document with every media blob its doors
// reference. It exists only while serializing or deserializing an export.
type CalendarBundle struct {
	Calendar   calendar.Calendar `json:"calendar"`
	MediaFiles map[string][]byte `json:"mediaFiles"`
}

// ExportCalendar builds a bundle for the given calendar and returns its
// serialized bytes plus a descriptive filename.
//
// Media blobs travel under content-derived names (SHA-256 of the payload plus
// the original extension) and the bundled calendar copy has its door
// references rewritten to match, so importing the same bundle any number of
// times converges on one blob per distinct payload. Doors whose referenced
// blob is missing from the media store keep their reference but contribute no
// bundle entry.
func (s *Store) ExportCalendar(cal calendar.Calendar) ([]byte, string, error) {
	bundled := cal.Clone()
	mediaFiles := make(map[string][]byte)

	for i, door := range bundled.Doors {
		identifier, ok := door.Content.MediaReference()
		if !ok {
			continue
		}
		data, found := s.LoadMedia(identifier)
		if !found {
			s.logWarn(opExportBundle, "media_missing", nil,
				zap.Int("door", door.Number),
				zap.String("identifier", identifier))
			continue
		}
		name := contentDerivedName(data, identifier)
		mediaFiles[name] = data
		bundled.Doors[i].Content.MediaID = name
	}

	bundle := CalendarBundle{Calendar: bundled, MediaFiles: mediaFiles}
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, "", newStoreError(opExportBundle, "encode_failed", err)
	}

	filename := fmt.Sprintf("Calendar_%s_%s%s",
		sanitizeTitle(cal.Title),
		s.clock().Format("2006-01-02"),
		BundleExtension)
	return data, filename, nil
}

// ImportCalendar deserializes a bundle, writes every embedded blob into media
// storage under its embedded name (overwriting any blob already stored under
// that name), and returns the embedded calendar unchanged.
func (s *Store) ImportCalendar(data []byte) (calendar.Calendar, error) {
	var bundle CalendarBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return calendar.Calendar{}, newImportError(ImportErrorInvalidBundle, err)
	}
	if bundle.Calendar.Title == "" && len(bundle.Calendar.Doors) == 0 {
		return calendar.Calendar{}, newImportError(ImportErrorInvalidBundle,
			errors.New("bundle has no calendar section"))
	}
	if err := bundle.Calendar.Validate(); err != nil {
		return calendar.Calendar{}, newImportError(ImportErrorInvalidBundle, err)
	}

	for name, blob := range bundle.MediaFiles {
		if err := s.SaveMedia(blob, name); err != nil {
			return calendar.Calendar{}, newStoreError(opImportBundle, "media_write_failed", err)
		}
	}

	return bundle.Calendar, nil
}

// ImportCalendarFromFile reads a bundle from disk, mapping filesystem errors
// to the import failure classes shown to the user.
func (s *Store) ImportCalendarFromFile(path string) (calendar.Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return calendar.Calendar{}, newImportError(ImportErrorInaccessible, err)
		}
		return calendar.Calendar{}, newImportError(ImportErrorUnreadable, err)
	}
	return s.ImportCalendar(data)
}

func contentDerivedName(data []byte, originalIdentifier string) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + filepath.Ext(originalIdentifier)
}

// sanitizeTitle replaces every non-alphanumeric rune so the title is safe
// inside a filename.
func sanitizeTitle(title string) string {
	var builder strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
		} else {
			builder.WriteRune('_')
		}
	}
	if builder.Len() == 0 {
		return "Untitled"
	}
	return builder.String()
}
