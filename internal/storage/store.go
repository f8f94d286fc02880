package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"github.com/adventkit/adventkit/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	calendarDirName  = "calendar"
	mediaDirName     = "media"
	calendarFileName = "calendar.json"
	libraryFileName  = "library.db"
)

var (
	errMissingRootDir = errors.New("storage root directory is required")
	noOpLogger        = zap.NewNop()
)

const (
	opStoreNew      = "storage.store.new"
	opSaveCalendar  = "storage.save_calendar"
	opLoadCalendar  = "storage.load_calendar"
	opSaveMedia     = "storage.save_media"
	opLoadMedia     = "storage.load_media"
	opDeleteMedia   = "storage.delete_media"
	opExportBundle  = "storage.export_bundle"
	opImportBundle  = "storage.import_bundle"
	opLibraryAccess = "storage.library"
)

// StoreConfig captures the dependencies of the durable store.
type StoreConfig struct {
	// RootDir is the directory holding the calendar, library and media
	// hierarchies. Created on demand.
	RootDir string
	// Strict makes write failures propagate to callers. The default lenient
	// mode logs them and reports success, matching the shipped behavior of
	// never surfacing storage errors into interaction flows.
	Strict     bool
	Clock      func() time.Time
	IDProvider calendar.IDProvider
	Logger     *zap.Logger
}

// Store owns every on-disk representation: the active-calendar document,
// the media blob namespace, and the library index.
type Store struct {
	root       string
	strict     bool
	clock      func() time.Time
	idProvider calendar.IDProvider
	logger     *zap.Logger
	library    *gorm.DB
}

// NewStore prepares the on-disk hierarchy and opens the library index.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.RootDir == "" {
		return nil, newStoreError(opStoreNew, "missing_root_dir", errMissingRootDir)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = calendar.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	store := &Store{
		root:       cfg.RootDir,
		strict:     cfg.Strict,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}

	for _, dir := range []string{store.calendarDir(), store.mediaDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStoreError(opStoreNew, "mkdir_failed", err)
		}
	}

	library, err := database.OpenLibrary(filepath.Join(store.calendarDir(), libraryFileName), logger)
	if err != nil {
		return nil, newStoreError(opStoreNew, "library_open_failed", err)
	}
	store.library = library

	return store, nil
}

// LoadCalendar reads the active-calendar document. It returns false when the
// document is absent or corrupt so callers can fall back to a generated
// default; a broken save file must never block startup.
func (s *Store) LoadCalendar() (*calendar.Calendar, bool) {
	data, err := os.ReadFile(s.calendarPath())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logWarn(opLoadCalendar, "read_failed", err)
		}
		return nil, false
	}

	var cal calendar.Calendar
	if err := json.Unmarshal(data, &cal); err != nil {
		s.logWarn(opLoadCalendar, "decode_failed", err)
		return nil, false
	}
	return &cal, true
}

// SaveCalendar serializes and atomically overwrites the active-calendar
// document. In lenient mode failures are logged and absorbed.
func (s *Store) SaveCalendar(cal calendar.Calendar) error {
	data, err := json.MarshalIndent(cal, "", "  ")
	if err != nil {
		return s.absorb(opSaveCalendar, "encode_failed", err)
	}
	if err := writeFileAtomic(s.calendarPath(), data); err != nil {
		return s.absorb(opSaveCalendar, "write_failed", err)
	}
	return nil
}

// SaveMedia stores a blob under a caller-chosen identifier. Two identical
// payloads saved under two identifiers produce two blobs; the store never
// deduplicates.
func (s *Store) SaveMedia(data []byte, identifier string) error {
	path, err := s.mediaPath(identifier)
	if err != nil {
		return s.absorb(opSaveMedia, "invalid_identifier", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return s.absorb(opSaveMedia, "write_failed", err)
	}
	return nil
}

// LoadMedia returns the blob saved under the identifier, or false when no
// such blob exists.
func (s *Store) LoadMedia(identifier string) ([]byte, bool) {
	path, err := s.mediaPath(identifier)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logWarn(opLoadMedia, "read_failed", err, zap.String("identifier", identifier))
		}
		return nil, false
	}
	return data, true
}

// DeleteMedia removes the blob saved under the identifier. Deleting an
// unknown identifier is a no-op.
func (s *Store) DeleteMedia(identifier string) error {
	path, err := s.mediaPath(identifier)
	if err != nil {
		return s.absorb(opDeleteMedia, "invalid_identifier", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return s.absorb(opDeleteMedia, "remove_failed", err)
	}
	return nil
}

func (s *Store) calendarDir() string {
	return filepath.Join(s.root, calendarDirName)
}

func (s *Store) mediaDir() string {
	return filepath.Join(s.root, mediaDirName)
}

func (s *Store) calendarPath() string {
	return filepath.Join(s.calendarDir(), calendarFileName)
}

// mediaPath resolves an identifier inside the media namespace. Identifiers
// are free-form strings but must not escape the namespace.
func (s *Store) mediaPath(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("media identifier is empty")
	}
	cleaned := filepath.Base(identifier)
	if cleaned != identifier {
		return "", fmt.Errorf("media identifier %q contains path separators", identifier)
	}
	return filepath.Join(s.mediaDir(), cleaned), nil
}

// absorb applies the configured failure policy: strict propagates, lenient
// logs and reports success.
func (s *Store) absorb(operation, reason string, cause error) error {
	err := newStoreError(operation, reason, cause)
	if s.strict {
		return err
	}
	s.logWarn(operation, reason, cause)
	return nil
}

func (s *Store) logWarn(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Warn("storage failure", attrs...)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
