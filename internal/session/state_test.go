package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Modals(t *testing.T) {
	s := NewState()
	assert.False(t, s.AnyModalOpen())
	assert.True(t, s.Foreground())

	a := s.OpenModal(ModalEdit)
	b := s.OpenModal(ModalAuthorization)
	assert.Equal(t, 2, s.OpenModals())

	assert.True(t, s.CloseModal(a))
	assert.False(t, s.CloseModal(a))
	assert.True(t, s.AnyModalOpen())

	s.CloseModal(b)
	assert.False(t, s.AnyModalOpen())
}

func TestState_Visibility(t *testing.T) {
	s := NewState()
	s.SetForeground(false)
	assert.False(t, s.Foreground())
	s.SetForeground(true)
	assert.True(t, s.Foreground())
}

func TestValidModal(t *testing.T) {
	assert.True(t, ValidModal(ModalPayment))
	assert.False(t, ValidModal("report"))
}
