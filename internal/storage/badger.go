package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
)

// BadgerChatStore implements ChatStore on top of BadgerDB. Each conversation
// is stored under its own key as a JSON message array.
type BadgerChatStore struct {
	db  *badger.DB
	log logrus.FieldLogger
	now func() time.Time

	// mu serializes read-modify-write on a conversation so message IDs stay
	// sequential.
	mu sync.Mutex
}

// NewBadgerChatStore opens (or creates) the database at dbPath.
func NewBadgerChatStore(dbPath string, logger logrus.FieldLogger) (*BadgerChatStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.WithField("path", dbPath).Info("BadgerDB opened")

	return &BadgerChatStore{
		db:  db,
		log: logger.WithField("component", "chat_store"),
		now: time.Now,
	}, nil
}

// Close closes the database.
func (r *BadgerChatStore) Close() error {
	r.log.Info("Closing BadgerDB...")
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// conversationKey formats the key holding one conversation: chat:{articleID}
func conversationKey(articleID string) []byte {
	return []byte("chat:" + articleID)
}

func readConversation(txn *badger.Txn, articleID string) ([]domain.ChatMessage, error) {
	item, err := txn.Get(conversationKey(articleID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []domain.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []domain.ChatMessage
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msgs)
	})
	if err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", articleID, err)
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// GetConversation implements ChatStore.
func (r *BadgerChatStore) GetConversation(ctx context.Context, articleID string) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msgs []domain.ChatMessage
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		msgs, err = readConversation(txn, articleID)
		return err
	})
	if err != nil {
		r.log.WithError(err).WithField("article_id", articleID).Error("Failed to read conversation")
		return nil, fmt.Errorf("failed to get conversation %s: %w", articleID, err)
	}
	return msgs, nil
}

// AddMessage implements ChatStore.
func (r *BadgerChatStore) AddMessage(ctx context.Context, articleID, msgType, content, model string) (domain.ChatMessage, error) {
	added, err := r.appendMessages(ctx, articleID, draft{msgType: msgType, content: content, model: model})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return added[0], nil
}

// AddExchange implements ChatStore. Both messages are written in one
// transaction.
func (r *BadgerChatStore) AddExchange(ctx context.Context, articleID, question, answer, model string) ([]domain.ChatMessage, error) {
	return r.appendMessages(ctx, articleID, exchange(question, answer, model)...)
}

func (r *BadgerChatStore) appendMessages(ctx context.Context, articleID string, drafts ...draft) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := r.log.WithField("article_id", articleID)

	r.mu.Lock()
	defer r.mu.Unlock()

	var added []domain.ChatMessage
	err := r.db.Update(func(txn *badger.Txn) error {
		msgs, err := readConversation(txn, articleID)
		if err != nil {
			return err
		}
		now := r.now()
		added = make([]domain.ChatMessage, 0, len(drafts))
		for _, d := range drafts {
			msg := domain.NewChatMessage(len(msgs), d.msgType, d.content, d.model, now)
			msgs = append(msgs, msg)
			added = append(added, msg)
		}

		data, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("encode conversation: %w", err)
		}
		return txn.SetEntry(badger.NewEntry(conversationKey(articleID), data))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save chat messages to BadgerDB")
		return nil, &StorageError{Op: "add chat messages", Err: err}
	}

	log.WithField("added", len(added)).Debug("Chat messages recorded")
	return added, nil
}

// ClearConversation implements ChatStore. The key is kept with an empty
// array so the article still shows up as having had a conversation.
func (r *BadgerChatStore) ClearConversation(ctx context.Context, articleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := conversationKey(articleID)
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}
		return txn.Set(key, []byte("[]"))
	})
	if err != nil {
		r.log.WithError(err).WithField("article_id", articleID).Error("Failed to clear conversation")
		return &StorageError{Op: "clear conversation", Err: err}
	}
	return nil
}

// RunGC runs value log garbage collection every interval until ctx is done.
func (r *BadgerChatStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: no rewrite needed")
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				r.log.WithError(err).Warn("BadgerDB GC failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
