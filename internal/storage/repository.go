package storage

import (
	"context"
	"errors"
	"fmt"

	"newsreader/internal/domain"
)

// ChatStore defines the persistence operations for per-article conversations.
// This allows us to swap storage implementations (JSON document, BadgerDB)
// without changing the chat service that uses it.
type ChatStore interface {
	// GetConversation returns the messages recorded for articleID, oldest
	// first. Unknown IDs yield an empty slice.
	GetConversation(ctx context.Context, articleID string) ([]domain.ChatMessage, error)

	// AddMessage appends a message and persists the conversation. model is
	// only recorded for ai messages.
	AddMessage(ctx context.Context, articleID, msgType, content, model string) (domain.ChatMessage, error)

	// AddExchange appends a user question and the ai answer to it in a
	// single write, so a failed save never leaves an unanswered question.
	AddExchange(ctx context.Context, articleID, question, answer, model string) ([]domain.ChatMessage, error)

	// ClearConversation empties the conversation for articleID. Clearing an
	// unknown conversation succeeds without writing anything.
	ClearConversation(ctx context.Context, articleID string) error

	// Close releases any underlying resources.
	Close() error
}

// draft is a message not yet numbered or timestamped.
type draft struct {
	msgType string
	content string
	model   string
}

func exchange(question, answer, model string) []draft {
	return []draft{
		{msgType: domain.MessageTypeUser, content: question},
		{msgType: domain.MessageTypeAI, content: answer, model: model},
	}
}

// StorageError reports a write that did not complete. The operation that
// produced it must be treated as failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
