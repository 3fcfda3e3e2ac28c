package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"nordbot/internal/domain"
)

// Session owns one user's displayed transcript and input field value.
// The transcript is append-only until Reset.
type Session struct {
	ID string

	mu         sync.Mutex
	transcript []domain.TranscriptEntry
	input      string
	lastSeen   time.Time
}

// New creates an empty session with a random id.
func New() *Session {
	return &Session{ID: uuid.NewString(), lastSeen: time.Now()}
}

// Transcript returns a copy of the entries in insertion order.
func (s *Session) Transcript() []domain.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of transcript entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// AppendTurn appends the question and its answer as one unit.
func (s *Session) AppendTurn(question, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript,
		domain.TranscriptEntry{Role: domain.RoleUser, Content: question},
		domain.TranscriptEntry{Role: domain.RoleAssistant, Content: answer},
	)
	s.lastSeen = time.Now()
}

// Input returns the stored input field value.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// SetInput stores the input field value.
func (s *Session) SetInput(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = v
	s.lastSeen = time.Now()
}

// Reset clears the transcript and the input field value.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
	s.input = ""
	s.lastSeen = time.Now()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
