package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PersistedAnswer is the storable form of one answer. Raw audio bytes are
// not persisted; an un-uploaded recording survives only in memory.
type PersistedAnswer struct {
	Kind        AnswerKind `json:"kind"`
	ChosenLabel string     `json:"chosen_label,omitempty"`
	Text        string     `json:"text,omitempty"`
	AudioURL    string     `json:"audio_url,omitempty"`
	PartType    string     `json:"part_type,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PersistedSession mirrors the controller's state into durable client
// storage on every mutation, so a reload can rebuild UI state without a
// network round trip. It is advisory only: the reconciliation path decides
// whether any of it survives.
type PersistedSession struct {
	TestID           uint                       `json:"test_id"`
	TestResultID     uint                       `json:"test_result_id"`
	Answers          map[string]PersistedAnswer `json:"answers"`
	CurrentIndex     int                        `json:"current_index"`
	StartedAt        time.Time                  `json:"started_at"`
	TimingMode       string                     `json:"timing_mode"`
	DurationMinutes  int                        `json:"duration_minutes"`
	LastServerSyncAt time.Time                  `json:"last_server_sync_at"`
}

// EncodeKey flattens an AnswerKey for use as a JSON map key.
func EncodeKey(k AnswerKey) string {
	return fmt.Sprintf("%d:%d", k.QuestionID, k.SubIndex)
}

// DecodeKey inverts EncodeKey.
func DecodeKey(s string) (AnswerKey, error) {
	var k AnswerKey
	if _, err := fmt.Sscanf(s, "%d:%d", &k.QuestionID, &k.SubIndex); err != nil {
		return AnswerKey{}, fmt.Errorf("malformed answer key %q: %w", s, err)
	}
	return k, nil
}

// Store is the client-local durable storage contract.
type Store interface {
	Load(ctx context.Context, testID uint) (*PersistedSession, error)
	Save(ctx context.Context, s *PersistedSession) error
	Clear(ctx context.Context, testID uint) error
}

type memoryStore struct {
	mu       sync.Mutex
	sessions map[uint]*PersistedSession
}

// NewMemoryStore returns an in-process Store, used in tests and as a
// fallback when no Redis address is configured.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[uint]*PersistedSession)}
}

func (m *memoryStore) Load(_ context.Context, testID uint) (*PersistedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[testID]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Answers = make(map[string]PersistedAnswer, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	return &cp, nil
}

func (m *memoryStore) Save(_ context.Context, s *PersistedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Answers = make(map[string]PersistedAnswer, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	m.sessions[s.TestID] = &cp
	return nil
}

func (m *memoryStore) Clear(_ context.Context, testID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, testID)
	return nil
}
