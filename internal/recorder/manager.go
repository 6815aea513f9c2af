package recorder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"listingpilot/backend/internal/mapping"
	"listingpilot/backend/internal/page"
)

var (
	ErrAlreadyRecording = errors.New("a field mapping session is already running")
	ErrPostingInFlight  = errors.New("cannot map fields while a vehicle is being posted")
	ErrSessionNotFound  = errors.New("recording session not found")
)

// PageLock hands the page to the wizard. Reserve fails while the form is
// being filled, and form fills are refused until release is called.
type PageLock interface {
	Reserve() (release func(), ok bool)
}

// Manager owns wizard sessions. Only one wizard runs at a time.
type Manager struct {
	capturer page.Capturer
	store    mapping.Store
	lock     PageLock
	pacing   Pacing

	mutex    sync.RWMutex
	sessions map[string]*Wizard
	active   string
}

func NewManager(capturer page.Capturer, store mapping.Store, lock PageLock, pacing Pacing) *Manager {
	return &Manager{
		capturer: capturer,
		store:    store,
		lock:     lock,
		pacing:   pacing,
		sessions: make(map[string]*Wizard),
	}
}

// Start launches a new wizard and returns its session id.
func (m *Manager) Start() (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if w, ok := m.sessions[m.active]; ok && w.IsRecording() {
		return "", fmt.Errorf("%w (session %s)", ErrAlreadyRecording, m.active)
	}
	release := func() {}
	if m.lock != nil {
		var ok bool
		if release, ok = m.lock.Reserve(); !ok {
			return "", ErrPostingInFlight
		}
	}

	sessionID := uuid.New().String()
	w := newWizard(sessionID, m.capturer, m.store, m.pacing)
	w.release = release
	m.sessions[sessionID] = w
	m.active = sessionID
	w.start()
	return sessionID, nil
}

func (m *Manager) Stop(sessionID string) error {
	w, ok := m.Get(sessionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	w.Stop()
	return nil
}

// Active reports whether any wizard is recording.
func (m *Manager) Active() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	w, ok := m.sessions[m.active]
	return ok && w.IsRecording()
}

func (m *Manager) Get(sessionID string) (*Wizard, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	w, ok := m.sessions[sessionID]
	return w, ok
}

func (m *Manager) Status(sessionID string) (Snapshot, error) {
	w, ok := m.Get(sessionID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return w.Snapshot(), nil
}

// Cleanup forgets a finished session.
func (m *Manager) Cleanup(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if w, ok := m.sessions[sessionID]; ok && !w.IsRecording() {
		delete(m.sessions, sessionID)
	}
}

// Shutdown stops the running wizard, if any, so the page is left without
// the overlay or the click capture.
func (m *Manager) Shutdown() {
	m.mutex.RLock()
	w, ok := m.sessions[m.active]
	m.mutex.RUnlock()
	if ok && w.IsRecording() {
		w.Stop()
	}
}
