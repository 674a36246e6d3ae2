package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/model/chat"
	"github.com/zhouzirui/waychat/backend/internal/model/profile"
	"github.com/zhouzirui/waychat/backend/internal/service/ai"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Service keeps one Session per widget instance in memory.
type Service struct {
	completer      ai.Completer
	profiles       profile.Store
	defaultProfile string
	idleTTL        time.Duration
	now            func() time.Time
	logger         zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithDefaultProfile names the profile used when CreateSession gets none.
func WithDefaultProfile(id string) ServiceOption {
	return func(s *Service) { s.defaultProfile = id }
}

// WithIdleTTL sets how long an untouched session survives. Zero keeps sessions forever.
func WithIdleTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.idleTTL = ttl }
}

// WithServiceLogger attaches a logger shared with created sessions.
func WithServiceLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithServiceClock replaces time.Now for created sessions.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService bootstraps the in-memory registry.
func NewService(completer ai.Completer, profiles profile.Store, opts ...ServiceOption) *Service {
	s := &Service{
		completer:      completer,
		profiles:       profiles,
		defaultProfile: profile.DefaultID,
		logger:         zerolog.Nop(),
		sessions:       make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession provisions a session seeded with the profile's system prompt.
func (s *Service) CreateSession(_ context.Context, profileID string) (*Session, error) {
	if profileID == "" {
		profileID = s.defaultProfile
	}

	p, ok := s.profiles.FindByID(profileID)
	if !ok {
		return nil, ErrProfileNotFound
	}

	opts := []SessionOption{WithProfileID(p.ID), WithLogger(s.logger)}
	if s.now != nil {
		opts = append(opts, WithClock(s.now))
	}
	session := NewSession(s.completer, p.SystemPrompt, opts...)

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	s.logger.Info().Str("session_id", session.ID()).Str("profile_id", p.ID).Msg("session created")
	return session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns a copy of the session's turns.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Transcript(), nil
}

// DeleteSession forgets a session.
func (s *Service) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle drops idle sessions whose last activity is older than the TTL.
// Sessions awaiting a reply are kept. Attached widgets keep their session
// alive through Session.Touch.
func (s *Service) EvictIdle(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, session := range s.sessions {
		if session.State() != chat.StateIdle {
			continue
		}
		if now.Sub(session.LastActive()) < s.idleTTL {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}

	if evicted > 0 {
		s.logger.Info().Int("evicted", evicted).Int("remaining", len(s.sessions)).Msg("idle sessions evicted")
	}
	return evicted
}

// RunEvictionLoop calls EvictIdle every interval until ctx is done.
func (s *Service) RunEvictionLoop(ctx context.Context, interval time.Duration) error {
	if s.idleTTL <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.EvictIdle(now.UTC())
		}
	}
}
