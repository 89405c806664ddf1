package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/med-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrTurnNotFound  = errors.New("turn not found")
	ErrTurnFinalized = errors.New("turn already finalized")
)

// Service keeps transcripts for the lifetime of the process.
type Service struct {
	mu    sync.RWMutex
	chats map[string]chat.Chat
	turns map[string][]chat.Turn
}

// NewService bootstraps the in-memory transcript store.
func NewService() *Service {
	return &Service{
		chats: make(map[string]chat.Chat),
		turns: make(map[string][]chat.Turn),
	}
}

// CreateChat provisions an anonymous chat.
func (s *Service) CreateChat(_ context.Context) (chat.Chat, error) {
	now := time.Now().UTC()
	c := chat.Chat{
		ID:        uuid.NewString(),
		CreatedAt: now,
	}

	turns := make([]chat.Turn, 0, 16)
	turns = append(turns, chat.Turn{
		ID:        uuid.NewString(),
		ChatID:    c.ID,
		Role:      chat.RoleAssistant,
		Content:   chat.Greeting,
		Status:    string(stream.StatusComplete),
		CreatedAt: now,
		UpdatedAt: now,
	})

	s.mu.Lock()
	s.chats[c.ID] = c
	s.turns[c.ID] = turns
	s.mu.Unlock()

	return c, nil
}

// GetChat retrieves a chat by identifier.
func (s *Service) GetChat(_ context.Context, chatID string) (chat.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return chat.Chat{}, ErrChatNotFound
	}
	return c, nil
}

// DeleteChat drops a chat and its transcript.
func (s *Service) DeleteChat(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[chatID]; !ok {
		return ErrChatNotFound
	}
	delete(s.chats, chatID)
	delete(s.turns, chatID)
	return nil
}

// AppendTurn adds a turn to the transcript and returns it with ID and timestamps set.
func (s *Service) AppendTurn(_ context.Context, turn chat.Turn) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[turn.ChatID]; !ok {
		return chat.Turn{}, ErrChatNotFound
	}

	turn.ID = uuid.NewString()
	now := time.Now().UTC()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = now
	}
	turn.UpdatedAt = turn.CreatedAt

	s.turns[turn.ChatID] = append(s.turns[turn.ChatID], turn)
	return turn, nil
}

// ApplyUpdate copies a stream update onto an assistant turn. Terminal turns are not
// modified again.
func (s *Service) ApplyUpdate(_ context.Context, chatID, turnID string, u stream.Update) (chat.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, ok := s.turns[chatID]
	if !ok {
		return chat.Turn{}, ErrChatNotFound
	}

	for i := range turns {
		if turns[i].ID != turnID {
			continue
		}
		if turns[i].Role != chat.RoleAssistant || stream.Status(turns[i].Status).Terminal() {
			return turns[i], ErrTurnFinalized
		}
		turns[i].Content = u.Text
		turns[i].Status = string(u.Status)
		turns[i].Error = u.Err
		turns[i].UpdatedAt = time.Now().UTC()
		return turns[i], nil
	}
	return chat.Turn{}, ErrTurnNotFound
}

// LoadTranscript returns the stored turns of a chat.
func (s *Service) LoadTranscript(_ context.Context, chatID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}

	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}
