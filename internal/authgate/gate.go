// Package authgate holds rollback requests until an administrator supplies
// the master password.
//
// The gate only decides; committing the approved change is the caller's job.
// This keeps the gate free of storage concerns and lets the service perform
// the commit under its per-order lock.
package authgate

import (
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"giftpos/internal/session"
	"giftpos/internal/workflow"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrRequestNotFound is returned for unknown or already-resolved request ids.
var ErrRequestNotFound = errors.New("solicitud de autorización no encontrada")

// CredentialChecker compares operator input against the configured secret.
type CredentialChecker interface {
	Check(input string) bool
}

// MasterPassword is the organization-wide administrator secret. Matching is
// exact; there is no hashing and no per-user credential.
type MasterPassword string

// Check implements CredentialChecker.
func (m MasterPassword) Check(input string) bool {
	if m == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(m), []byte(input)) == 1
}

// RollbackRequest is a suspended backward transition, optionally carrying a
// shipping patch to apply together with the stage change.
type RollbackRequest struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	From      workflow.Stage
	Target    workflow.Stage
	Shipping  *workflow.ShippingPatch
	CreatedAt time.Time

	modalID string
}

// Gate is safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	checker CredentialChecker
	state   *session.State
	pending map[uuid.UUID]*RollbackRequest
	now     func() time.Time
}

// New creates a Gate. state may be nil when no terminal UI is attached.
func New(checker CredentialChecker, state *session.State) *Gate {
	return &Gate{
		checker: checker,
		state:   state,
		pending: make(map[uuid.UUID]*RollbackRequest),
		now:     time.Now,
	}
}

// Open suspends a rollback and raises the credential prompt. The prompt
// counts as an open authorization modal until it is approved or cancelled.
// While a prompt for the same order and target is pending it is reused, with
// a non-nil shipping patch replacing the one it carried.
func (g *Gate) Open(orderID uuid.UUID, from, target workflow.Stage, shipping *workflow.ShippingPatch) *RollbackRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, req := range g.pending {
		if req.OrderID == orderID && req.Target == target {
			if shipping != nil {
				req.Shipping = shipping
			}
			log.Debug().Str("request_id", req.ID.String()).Msg("authgate: reusing pending rollback")
			return req
		}
	}

	req := &RollbackRequest{
		ID:        uuid.New(),
		OrderID:   orderID,
		From:      from,
		Target:    target,
		Shipping:  shipping,
		CreatedAt: g.now().UTC(),
	}
	if g.state != nil {
		req.modalID = g.state.OpenModal(session.ModalAuthorization)
	}
	g.pending[req.ID] = req

	log.Info().
		Str("request_id", req.ID.String()).
		Str("order_id", orderID.String()).
		Str("from", string(from)).
		Str("target", string(target)).
		Msg("authgate: rollback awaiting authorization")
	return req
}

// Get returns a pending request.
func (g *Gate) Get(id uuid.UUID) (*RollbackRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.pending[id]
	return req, ok
}

// Approve verifies secret. On success the request is removed from the gate,
// its prompt is closed and it is returned for commit. A wrong secret returns
// workflow.ErrAuthorization and leaves the request pending for retry.
func (g *Gate) Approve(id uuid.UUID, secret string) (*RollbackRequest, error) {
	g.mu.Lock()
	req, ok := g.pending[id]
	if !ok {
		g.mu.Unlock()
		return nil, ErrRequestNotFound
	}
	if !g.checker.Check(secret) {
		g.mu.Unlock()
		log.Warn().Str("request_id", id.String()).Msg("authgate: wrong master password")
		return nil, workflow.ErrAuthorization
	}
	delete(g.pending, id)
	g.mu.Unlock()

	g.closePrompt(req)
	log.Info().Str("request_id", id.String()).Str("order_id", req.OrderID.String()).Msg("authgate: rollback authorized")
	return req, nil
}

// Cancel abandons a pending request without any mutation.
func (g *Gate) Cancel(id uuid.UUID) error {
	g.mu.Lock()
	req, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()
	if !ok {
		return ErrRequestNotFound
	}
	g.closePrompt(req)
	log.Info().Str("request_id", id.String()).Msg("authgate: rollback cancelled")
	return nil
}

// Pending returns the number of open prompts.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func (g *Gate) closePrompt(req *RollbackRequest) {
	if g.state != nil && req.modalID != "" {
		g.state.CloseModal(req.modalID)
	}
}
