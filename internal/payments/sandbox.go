package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopmarcas/smallauctions/utils"
)

// SandboxProvider is an in-process provider for local runs and tests.
// Sessions are paid as soon as they are created and the checkout URL points
// straight at the success URL.
type SandboxProvider struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSandboxProvider creates an empty sandbox
func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{sessions: make(map[string]Session)}
}

// CreateSession records a paid session
func (p *SandboxProvider) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	id := utils.GeneratePrefixedID("cs_sandbox")

	metadata := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	s := Session{
		ID:          id,
		URL:         strings.ReplaceAll(req.SuccessURL, SessionIDPlaceholder, id),
		Paid:        true,
		AmountTotal: req.UnitAmount,
		Currency:    strings.ToUpper(req.Currency),
		Metadata:    metadata,
	}

	p.mu.Lock()
	p.sessions[id] = s
	p.mu.Unlock()
	return s, nil
}

// GetSession returns a session created by this sandbox
func (p *SandboxProvider) GetSession(_ context.Context, sessionID string) (Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("sandbox session %s: %w", sessionID, ErrSessionNotFound)
	}
	return s, nil
}

// MarkUnpaid flips a session back to unpaid, as if the buyer abandoned it
func (p *SandboxProvider) MarkUnpaid(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[sessionID]; ok {
		s.Paid = false
		p.sessions[sessionID] = s
	}
}
