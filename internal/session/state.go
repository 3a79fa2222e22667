// Package session tracks the UI state of one terminal that the
// reconciliation loop must respect: which modals are open and whether the
// orders view is in the foreground.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// ModalKind names the dialogs that suspend background reconciliation.
type ModalKind string

const (
	ModalEdit          ModalKind = "edit"
	ModalAuthorization ModalKind = "authorization"
	ModalPayment       ModalKind = "payment"
)

// ValidModal reports whether k is a known modal kind.
func ValidModal(k ModalKind) bool {
	switch k {
	case ModalEdit, ModalAuthorization, ModalPayment:
		return true
	}
	return false
}

// State is safe for concurrent use. A new State starts in the foreground with
// no modals open.
type State struct {
	mu         sync.Mutex
	modals     map[string]ModalKind
	foreground bool
}

// NewState creates a foregrounded state with no open modals.
func NewState() *State {
	return &State{modals: make(map[string]ModalKind), foreground: true}
}

// OpenModal records an open dialog and returns its handle.
func (s *State) OpenModal(kind ModalKind) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.modals[id] = kind
	s.mu.Unlock()
	return id
}

// CloseModal forgets the dialog. Unknown ids are ignored.
func (s *State) CloseModal(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modals[id]; !ok {
		return false
	}
	delete(s.modals, id)
	return true
}

// AnyModalOpen reports whether any edit, authorization or payment dialog is open.
func (s *State) AnyModalOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.modals) > 0
}

// OpenModals returns the number of open dialogs.
func (s *State) OpenModals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.modals)
}

// SetForeground records the visibility signal.
func (s *State) SetForeground(v bool) {
	s.mu.Lock()
	s.foreground = v
	s.mu.Unlock()
}

// Foreground reports whether the orders view is visible.
func (s *State) Foreground() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foreground
}
