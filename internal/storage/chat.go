package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
	"newsreader/internal/jsonfile"
)

// JSONChatStore keeps every conversation in a single JSON object mapping
// article ID strings to message arrays.
type JSONChatStore struct {
	path string
	log  logrus.FieldLogger
	now  func() time.Time

	mu sync.Mutex
}

// NewJSONChatStore creates a chat store backed by the document at path.
func NewJSONChatStore(path string, logger logrus.FieldLogger) *JSONChatStore {
	return &JSONChatStore{
		path: path,
		log:  logger.WithField("component", "chat_store"),
		now:  time.Now,
	}
}

// load returns every conversation. Unreadable documents degrade to an empty
// map. When forWrite is set a corrupt document is renamed aside first, so the
// following save cannot destroy it.
func (s *JSONChatStore) load(forWrite bool) (map[string][]domain.ChatMessage, error) {
	conversations := map[string][]domain.ChatMessage{}
	_, err := jsonfile.Read(s.path, &conversations)
	if err == nil {
		if conversations == nil {
			conversations = map[string][]domain.ChatMessage{}
		}
		return conversations, nil
	}

	log := s.log.WithError(err).WithField("path", s.path)
	if forWrite && errors.Is(err, jsonfile.ErrCorrupt) {
		backup, setErr := jsonfile.SetAside(s.path, s.now())
		if setErr != nil {
			log.WithField("set_aside_error", setErr.Error()).Error("Corrupt chat document could not be set aside")
			return nil, &StorageError{Op: "set aside corrupt conversations", Err: setErr}
		}
		log = log.WithField("backup", backup)
	}
	log.Warn("Failed to load conversations, starting empty")
	return map[string][]domain.ChatMessage{}, nil
}

func (s *JSONChatStore) save(conversations map[string][]domain.ChatMessage) error {
	if err := jsonfile.Write(s.path, conversations); err != nil {
		s.log.WithError(err).Error("Failed to save conversations")
		return &StorageError{Op: "save conversations", Err: err}
	}
	return nil
}

// GetConversation implements ChatStore.
func (s *JSONChatStore) GetConversation(ctx context.Context, articleID string) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, _ := s.load(false)
	msgs := conversations[articleID]
	if msgs == nil {
		return []domain.ChatMessage{}, nil
	}
	return msgs, nil
}

// AddMessage implements ChatStore.
func (s *JSONChatStore) AddMessage(ctx context.Context, articleID, msgType, content, model string) (domain.ChatMessage, error) {
	added, err := s.appendMessages(ctx, articleID, draft{msgType: msgType, content: content, model: model})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return added[0], nil
}

// AddExchange implements ChatStore.
func (s *JSONChatStore) AddExchange(ctx context.Context, articleID, question, answer, model string) ([]domain.ChatMessage, error) {
	return s.appendMessages(ctx, articleID, exchange(question, answer, model)...)
}

func (s *JSONChatStore) appendMessages(ctx context.Context, articleID string, drafts ...draft) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, err := s.load(true)
	if err != nil {
		return nil, err
	}
	msgs := conversations[articleID]
	now := s.now()
	added := make([]domain.ChatMessage, 0, len(drafts))
	for _, d := range drafts {
		msg := domain.NewChatMessage(len(msgs), d.msgType, d.content, d.model, now)
		msgs = append(msgs, msg)
		added = append(added, msg)
	}
	conversations[articleID] = msgs

	if err := s.save(conversations); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"article_id": articleID,
		"added":      len(added),
		"last_id":    added[len(added)-1].ID,
	}).Debug("Chat messages recorded")
	return added, nil
}

// ClearConversation implements ChatStore.
func (s *JSONChatStore) ClearConversation(ctx context.Context, articleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conversations, err := s.load(true)
	if err != nil {
		return err
	}
	if _, ok := conversations[articleID]; !ok {
		return nil
	}
	conversations[articleID] = []domain.ChatMessage{}
	return s.save(conversations)
}

// Close implements ChatStore. The JSON store holds no open resources.
func (s *JSONChatStore) Close() error { return nil }
