package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cryptopal-backend/internal/models"
	"cryptopal-backend/internal/repository"
)

const (
	WelcomeMessage = "Hello! I'm CryptoPal AI, your cryptocurrency investment advisor. How can I help you today? 💎"
	ClearedMessage = "Chat cleared! How can I help you with cryptocurrencies today? 💎"

	defaultHistoryLimit = 20
	defaultLockWait     = 45 * time.Second
)

// Responder produces assistant text; it has no error path.
type Responder interface {
	Generate(ctx context.Context, query string, history []models.Turn) string
}

// TurnPublisher fans completed turns out to listeners of a session.
type TurnPublisher interface {
	PublishTurn(ctx context.Context, sessionID string, msg models.WSMessage)
}

type nopPublisher struct{}

func (nopPublisher) PublishTurn(context.Context, string, models.WSMessage) {}

// ChatService runs one conversation cycle per incoming message.
type ChatService struct {
	store        repository.ConversationStore
	responder    Responder
	locker       SessionLocker
	publisher    TurnPublisher
	historyLimit int
	lockWait     time.Duration
}

type ChatOption func(*ChatService)

func WithLocker(l SessionLocker) ChatOption {
	return func(s *ChatService) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithPublisher(p TurnPublisher) ChatOption {
	return func(s *ChatService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithHistoryLimit(n int) ChatOption {
	return func(s *ChatService) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithLockWait bounds how long a request waits for its session's lock.
func WithLockWait(d time.Duration) ChatOption {
	return func(s *ChatService) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

func NewChatService(store repository.ConversationStore, responder Responder, opts ...ChatOption) *ChatService {
	s := &ChatService{
		store:        store,
		responder:    responder,
		locker:       NewLocalLocker(),
		publisher:    nopPublisher{},
		historyLimit: defaultHistoryLimit,
		lockWait:     defaultLockWait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Conversation returns the session's log, seeding the welcome turn for a
// new session.
func (s *ChatService) Conversation(ctx context.Context, sessionID string) ([]models.Turn, error) {
	res, err := s.Converse(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	return res.Turns, nil
}

// Converse runs one cycle: seed the welcome turn if the session is empty,
// then, when query is non-blank, append it, generate a reply and append that.
func (s *ChatService) Converse(ctx context.Context, sessionID, query string) (*models.ChatResult, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	history, err := s.store.Recent(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	if len(history) == 0 {
		welcome, err := s.store.Append(ctx, sessionID, models.RoleAssistant, WelcomeMessage)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, sessionID, models.WSTypeTurn, welcome)
		history = []models.Turn{*welcome}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return &models.ChatResult{Turns: history}, nil
	}

	userTurn, err := s.store.Append(ctx, sessionID, models.RoleUser, query)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, models.WSTypeTurn, userTurn)

	history, err = s.store.Recent(ctx, sessionID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	reply := s.responder.Generate(ctx, query, history)

	// The user turn is already stored; keep the reply even if the client left.
	writeCtx := context.WithoutCancel(ctx)
	assistantTurn, err := s.store.Append(writeCtx, sessionID, models.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	s.publish(writeCtx, sessionID, models.WSTypeTurn, assistantTurn)

	history, err = s.store.Recent(writeCtx, sessionID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &models.ChatResult{Turns: history, Reply: assistantTurn}, nil
}

// Clear deletes the session's turns and reseeds a single welcome turn.
func (s *ChatService) Clear(ctx context.Context, sessionID string) (*models.Turn, error) {
	unlock, err := s.lock(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	seed, err := s.store.Reset(ctx, sessionID, models.RoleAssistant, ClearedMessage)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, sessionID, models.WSTypeCleared, seed)
	return seed, nil
}

func (s *ChatService) lock(ctx context.Context, sessionID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	return s.locker.Lock(lockCtx, sessionID)
}

func (s *ChatService) publish(ctx context.Context, sessionID, msgType string, turn *models.Turn) {
	s.publisher.PublishTurn(ctx, sessionID, models.WSMessage{Type: msgType, Payload: turn})
	log.Debug().Str("session_id", sessionID).Str("type", msgType).Str("role", string(turn.Role)).Msg("turn published")
}
