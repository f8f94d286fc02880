// Package state owns the single active calendar shared by every view of the
// application. All mutation flows through the Manager, which keeps the
// canonical copy, fans updates out to door-level subscribers, and persists
// after every change.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/adventkit/adventkit/internal/calendar"
	"github.com/adventkit/adventkit/internal/storage"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("durable store is required")
	noOpLogger      = zap.NewNop()
)

const (
	opManagerNew    = "state.manager.new"
	opInitialize    = "state.initialize"
	opReset         = "state.reset"
	opSilentUpdate  = "state.silently_update_door"
	opOpenDoor      = "state.open_door"
	opAddReaction   = "state.add_reaction"
	opPersist       = "state.persist"
	subscriberDepth = 16
)

// ManagerConfig captures the dependencies of the state manager. The manager is
// constructed once at the application root and handed to every consumer; there
// is no package-level shared instance.
type ManagerConfig struct {
	Store      *storage.Store
	Clock      func() time.Time
	IDProvider calendar.IDProvider
	// UserID identifies this installation in reactions.
	UserID string
	Logger *zap.Logger
}

// Manager is the single source of truth for the active calendar.
type Manager struct {
	mu         sync.Mutex
	store      *storage.Store
	clock      func() time.Time
	idProvider calendar.IDProvider
	userID     string
	logger     *zap.Logger

	active      calendar.Calendar
	subscribers map[string]map[int64]*doorSubscriber
	nextID      int64
}

type doorSubscriber struct {
	id     int64
	stream chan calendar.Door
}

// NewManager validates dependencies and returns an empty manager. Call
// Initialize before first use.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, newStateError(opManagerNew, "missing_store", errMissingStore)
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

	return &Manager{
		store:       cfg.Store,
		clock:       clock,
		idProvider:  idProvider,
		userID:      cfg.UserID,
		logger:      logger,
		subscribers: make(map[string]map[int64]*doorSubscriber),
	}, nil
}

// Initialize loads the persisted calendar, or installs and persists a
// generated default when none exists. A corrupt document counts as absent.
func (m *Manager) Initialize() error {
	if loaded, ok := m.store.LoadCalendar(); ok {
		m.mu.Lock()
		m.active = loaded.Clone()
		m.mu.Unlock()
		return nil
	}

	generated, err := calendar.NewDefault(m.idProvider, m.clock)
	if err != nil {
		m.logError(opInitialize, "default_generation_failed", err)
		return newStateError(opInitialize, "default_generation_failed", err)
	}

	m.mu.Lock()
	m.active = generated
	snapshot := m.active.Clone()
	m.mu.Unlock()

	m.persist(snapshot)
	return nil
}

// Calendar returns a snapshot copy of the active calendar.
func (m *Manager) Calendar() calendar.Calendar {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Clone()
}

// UserID exposes the per-installation user identifier used for reactions.
func (m *Manager) UserID() string {
	return m.userID
}

// Reset atomically replaces the entire active calendar, drops every
// registered subscriber, and persists. No subscriber from the previous
// calendar receives further deliveries.
func (m *Manager) Reset(cal calendar.Calendar) {
	m.mu.Lock()
	m.active = cal.Clone()
	m.subscribers = make(map[string]map[int64]*doorSubscriber)
	snapshot := m.active.Clone()
	m.mu.Unlock()

	m.logger.Info("calendar reset",
		zap.String("operation", opReset),
		zap.String("calendar_id", cal.ID),
		zap.Int("doors", len(cal.Doors)))
	m.persist(snapshot)
}

// Subscribe registers interest in updates to one door. Each delivery is a
// full copy of the door after a mutation. The returned cancel func is
// idempotent; after it runs (or after a Reset) the channel receives nothing
// further.
func (m *Manager) Subscribe(doorID string) (<-chan calendar.Door, func()) {
	if doorID == "" {
		ch := make(chan calendar.Door)
		close(ch)
		return ch, func() {}
	}

	m.mu.Lock()
	m.nextID++
	subscriber := &doorSubscriber{
		id:     m.nextID,
		stream: make(chan calendar.Door, subscriberDepth),
	}
	if _, ok := m.subscribers[doorID]; !ok {
		m.subscribers[doorID] = make(map[int64]*doorSubscriber)
	}
	m.subscribers[doorID][subscriber.id] = subscriber
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		registered := m.subscribers[doorID]
		if registered != nil {
			delete(registered, subscriber.id)
			if len(registered) == 0 {
				delete(m.subscribers, doorID)
			}
		}
		m.mu.Unlock()
	}
	return subscriber.stream, cancel
}

// SilentlyUpdateDoor overwrites the matching door in the active calendar,
// notifies only the subscribers registered for that door id, and persists.
// An update for an unknown door id is a silent no-op: it reflects a benign
// race with a reset, not a defect.
//
// Deliveries go over buffered channels with a non-blocking send, so a
// subscriber can never re-enter the manager synchronously from inside the
// notification pass.
func (m *Manager) SilentlyUpdateDoor(updated calendar.Door) {
	m.mu.Lock()
	index := m.doorIndexLocked(updated.ID)
	if index < 0 {
		m.mu.Unlock()
		m.logger.Debug("update for unknown door ignored",
			zap.String("operation", opSilentUpdate),
			zap.String("door_id", updated.ID))
		return
	}

	merged := mergeDoorUpdate(m.active.Doors[index], updated)
	m.active.Doors[index] = merged
	targets := m.subscriberSnapshotLocked(merged.ID)
	snapshot := m.active.Clone()
	m.mu.Unlock()

	for _, subscriber := range targets {
		select {
		case subscriber.stream <- merged.Clone():
		default:
		}
	}
	m.persist(snapshot)
}

// OpenDoor commits the UNLOCKED -> OPENED transition. Opening a locked or
// unknown door is a no-op; opening an already-open door reports true without
// a second notification.
func (m *Manager) OpenDoor(doorID string) bool {
	m.mu.Lock()
	index := m.doorIndexLocked(doorID)
	if index < 0 {
		m.mu.Unlock()
		return false
	}
	door := m.active.Doors[index]
	if !door.IsUnlocked {
		m.mu.Unlock()
		m.logger.Debug("open refused for locked door",
			zap.String("operation", opOpenDoor),
			zap.Int("door", door.Number))
		return false
	}
	if door.HasBeenOpened {
		m.mu.Unlock()
		return true
	}
	m.mu.Unlock()

	door.HasBeenOpened = true
	m.SilentlyUpdateDoor(door)
	return true
}

// AddReaction appends an emoji reaction from this installation's user to the
// door. A second reaction from the same user on the same door is ignored.
func (m *Manager) AddReaction(doorID, emoji string) bool {
	m.mu.Lock()
	index := m.doorIndexLocked(doorID)
	if index < 0 {
		m.mu.Unlock()
		return false
	}
	door := m.active.Doors[index].Clone()
	m.mu.Unlock()

	if door.HasReacted(m.userID) {
		return false
	}

	reactionID, err := m.idProvider.NewID()
	if err != nil {
		m.logError(opAddReaction, "id_generation_failed", err, zap.Int("door", door.Number))
		return false
	}

	door.Reactions = append(door.Reactions, calendar.Reaction{
		ID:        reactionID,
		Emoji:     emoji,
		UserID:    m.userID,
		CreatedAt: m.clock().UTC(),
	})
	m.SilentlyUpdateDoor(door)
	return true
}

// mergeDoorUpdate applies the door state machine to an incoming update:
// unlocking is monotonic, and a door cannot be opened while still locked.
// Identity fields always come from the stored door.
func mergeDoorUpdate(stored, incoming calendar.Door) calendar.Door {
	merged := incoming.Clone()
	merged.ID = stored.ID
	merged.Number = stored.Number
	if stored.IsUnlocked {
		merged.IsUnlocked = true
	}
	if stored.HasBeenOpened {
		merged.HasBeenOpened = true
	}
	if merged.HasBeenOpened && !merged.IsUnlocked {
		merged.HasBeenOpened = false
	}
	return merged
}

func (m *Manager) doorIndexLocked(doorID string) int {
	for i, door := range m.active.Doors {
		if door.ID == doorID {
			return i
		}
	}
	return -1
}

func (m *Manager) subscriberSnapshotLocked(doorID string) []*doorSubscriber {
	registered := m.subscribers[doorID]
	if len(registered) == 0 {
		return nil
	}
	snapshot := make([]*doorSubscriber, 0, len(registered))
	for _, subscriber := range registered {
		snapshot = append(snapshot, subscriber)
	}
	return snapshot
}

func (m *Manager) persist(snapshot calendar.Calendar) {
	if err := m.store.SaveCalendar(snapshot); err != nil {
		m.logError(opPersist, "save_failed", err)
	}
}

func (m *Manager) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	m.logger.Error("state manager error", attrs...)
}
