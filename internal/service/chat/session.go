package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/waychat/backend/internal/model/chat"
	"github.com/zhouzirui/waychat/backend/internal/service/ai"
)

// ErrReplyPending rejects a submission or request while a reply is outstanding.
var ErrReplyPending = errors.New("a reply is already pending")

// ErrorPrefix starts every error string handed back in place of a reply.
const ErrorPrefix = "Error: "

// Session owns one widget's transcript and mediates its request/response cycle.
type Session struct {
	id        string
	profileID string
	completer ai.Completer
	logger    zerolog.Logger
	now       func() time.Time
	createdAt time.Time

	mu         sync.Mutex
	turns      []chat.Turn
	awaiting   bool
	inflight   bool
	lastActive time.Time
}

// SessionOption customises a Session at construction.
type SessionOption func(*Session)

// WithSessionID overrides the generated identifier.
func WithSessionID(id string) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithProfileID records which profile supplied the system prompt.
func WithProfileID(id string) SessionOption {
	return func(s *Session) { s.profileID = id }
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession starts a transcript holding only the system turn.
func NewSession(completer ai.Completer, systemPrompt string, opts ...SessionOption) *Session {
	s := &Session{
		id:        uuid.NewString(),
		completer: completer,
		logger:    zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.createdAt = s.now()
	s.lastActive = s.createdAt
	s.turns = make([]chat.Turn, 0, 16)
	s.turns = append(s.turns, chat.Turn{Role: chat.RoleSystem, Content: systemPrompt, CreatedAt: s.createdAt})
	s.logger = s.logger.With().Str("session_id", s.id).Logger()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ProfileID returns the profile the session was created for.
func (s *Session) ProfileID() string { return s.profileID }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// SubmitUserText appends a user turn holding the trimmed text. Blank input is
// a no-op and reports false. While an earlier turn still awaits its reply the
// submission is rejected with ErrReplyPending.
func (s *Session) SubmitUserText(text string) (chat.Turn, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Turn{}, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.awaiting || s.inflight {
		return chat.Turn{}, false, ErrReplyPending
	}

	turn := chat.Turn{Role: chat.RoleUser, Content: text, CreatedAt: s.now()}
	s.turns = append(s.turns, turn)
	s.awaiting = true
	s.lastActive = turn.CreatedAt

	s.logger.Debug().Int("turns", len(s.turns)).Msg("user turn appended")
	return turn, true, nil
}

// RequestReply sends a snapshot of the transcript to the completer. A reply is
// appended as an assistant turn and returned. On failure nothing is appended
// and the returned string is the error message prefixed with ErrorPrefix.
func (s *Session) RequestReply(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.inflight {
		s.mu.Unlock()
		return ErrorPrefix + ErrReplyPending.Error(), ErrReplyPending
	}
	s.inflight = true
	snapshot := make([]chat.Turn, len(s.turns))
	copy(snapshot, s.turns)
	s.mu.Unlock()

	start := time.Now()
	reply, err := s.completer.Complete(ctx, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = false
	s.awaiting = false
	s.lastActive = s.now()

	if err != nil {
		s.logger.Warn().Err(err).Dur("latency", time.Since(start)).Msg("reply request failed")
		return ErrorPrefix + err.Error(), err
	}

	s.turns = append(s.turns, chat.Turn{Role: chat.RoleAssistant, Content: reply, CreatedAt: s.lastActive})
	s.logger.Info().
		Int("turns", len(s.turns)).
		Int("length", len(reply)).
		Dur("latency", time.Since(start)).
		Msg("assistant reply appended")
	return reply, nil
}

// Transcript returns a copy of every turn in order.
func (s *Session) Transcript() []chat.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]chat.Turn, len(s.turns))
	copy(copied, s.turns)
	return copied
}

// Len returns the number of turns, the system turn included.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// State reports whether a reply is outstanding.
func (s *Session) State() chat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() chat.State {
	if s.awaiting || s.inflight {
		return chat.StateAwaitingReply
	}
	return chat.StateIdle
}

// Touch marks the session as in use so idle eviction skips it.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// LastActive returns the time of the latest submission, reply or Touch.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Info describes the session for API clients.
func (s *Session) Info() chat.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return chat.SessionInfo{
		ID:         s.id,
		ProfileID:  s.profileID,
		State:      s.stateLocked(),
		Turns:      len(s.turns),
		CreatedAt:  s.createdAt,
		LastActive: s.lastActive,
	}
}
