package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ProviderStatus reports whether a generation provider is usable.
type ProviderStatus int

const (
	ProviderStatusUnknown  ProviderStatus = iota // Default zero value
	ProviderStatusActive                         // Provider is operational
	ProviderStatusDisabled                       // Provider is not configured
)

// TextGenerator is the external capability that, given a prompt, produces
// generated text or fails. Implementations classify their provider's API
// errors into *models.GenerationError so callers can branch on structured
// codes rather than message substrings.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	Name() string      // Provider name (e.g., "openai", "gemini")
	ModelName() string // Specific model used
	Status() ProviderStatus
}

// ClientManager wraps a provider constructor, reusing the built client and
// re-validating the credential path on a fixed interval. It replaces the
// lazily-initialized process-global client with an explicitly constructed
// dependency; the clock is injected so tests can drive revalidation.
type ClientManager struct {
	mu            sync.Mutex
	build         func() (TextGenerator, error)
	clock         func() time.Time
	interval      time.Duration
	gen           TextGenerator
	lastValidated time.Time
}

// NewClientManager creates a manager around build. A nil clock defaults to
// time.Now.
func NewClientManager(build func() (TextGenerator, error), clock func() time.Time, interval time.Duration) *ClientManager {
	if clock == nil {
		clock = time.Now
	}
	return &ClientManager{build: build, clock: clock, interval: interval}
}

func (m *ClientManager) generator() (TextGenerator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen == nil || m.clock().Sub(m.lastValidated) > m.interval {
		gen, err := m.build()
		if err != nil {
			return nil, err
		}
		m.gen = gen
		m.lastValidated = m.clock()
		log.WithField("provider", gen.Name()).Info("generation client initialized")
	}
	return m.gen, nil
}

func (m *ClientManager) GenerateText(ctx context.Context, prompt string) (string, error) {
	gen, err := m.generator()
	if err != nil {
		return "", err
	}
	return gen.GenerateText(ctx, prompt)
}

func (m *ClientManager) Name() string {
	if gen, err := m.generator(); err == nil {
		return gen.Name()
	}
	return "unconfigured"
}

func (m *ClientManager) ModelName() string {
	if gen, err := m.generator(); err == nil {
		return gen.ModelName()
	}
	return ""
}

func (m *ClientManager) Status() ProviderStatus {
	if gen, err := m.generator(); err == nil {
		return gen.Status()
	}
	return ProviderStatusDisabled
}

var _ TextGenerator = (*ClientManager)(nil)
