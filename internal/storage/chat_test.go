package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreader/internal/domain"
)

func TestJSONChatStore_Conversation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chat.json")
	s := NewJSONChatStore(path, testLogger())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	msgs, err := s.GetConversation(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	u, err := s.AddMessage(ctx, "3", domain.MessageTypeUser, "Question ?", "gpt")
	require.NoError(t, err)
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, fixed.UnixMilli(), u.Timestamp)
	assert.Empty(t, u.ModelUsed)

	a, err := s.AddMessage(ctx, "3", domain.MessageTypeAI, "Réponse", "gpt")
	require.NoError(t, err)
	assert.Equal(t, "2", a.ID)
	assert.Equal(t, "gpt", a.ModelUsed)

	// A second store over the same file sees the persisted history.
	reopened := NewJSONChatStore(path, testLogger())
	msgs, err = reopened.GetConversation(ctx, "3")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Réponse", msgs[1].Content)

	require.NoError(t, reopened.ClearConversation(ctx, "3"))
	msgs, err = s.GetConversation(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestJSONChatStore_ClearUnknownDoesNotWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	s := NewJSONChatStore(path, testLogger())

	require.NoError(t, s.ClearConversation(context.Background(), "42"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestJSONChatStore_CorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.WriteFile(path, []byte("]]"), 0o644))
	s := NewJSONChatStore(path, testLogger())

	msgs, err := s.GetConversation(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	backups, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, backups, "reading alone keeps the document in place")

	msg, err := s.AddMessage(context.Background(), "1", domain.MessageTypeUser, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "1", msg.ID)

	backups, err = filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, backups, 1)
	raw, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "]]", string(raw))
}

func TestJSONChatStore_AddExchange(t *testing.T) {
	ctx := context.Background()
	s := NewJSONChatStore(filepath.Join(t.TempDir(), "chat.json"), testLogger())

	_, err := s.AddMessage(ctx, "5", domain.MessageTypeUser, "earlier", "")
	require.NoError(t, err)

	added, err := s.AddExchange(ctx, "5", "Pourquoi ?", "Parce que.", "mistral small")
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "2", added[0].ID)
	assert.Equal(t, domain.MessageTypeUser, added[0].Type)
	assert.Empty(t, added[0].ModelUsed)
	assert.Equal(t, "3", added[1].ID)
	assert.Equal(t, domain.MessageTypeAI, added[1].Type)
	assert.Equal(t, "mistral small", added[1].ModelUsed)

	msgs, err := s.GetConversation(ctx, "5")
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestJSONChatStore_AddExchangeFailureRecordsNothing(t *testing.T) {
	// The target path is a non-empty directory, so the rename fails.
	path := filepath.Join(t.TempDir(), "chat.json")
	require.NoError(t, os.Mkdir(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "x"), []byte("x"), 0o644))
	s := NewJSONChatStore(path, testLogger())

	_, err := s.AddExchange(context.Background(), "1", "question", "answer", "m")
	require.Error(t, err)
	assert.True(t, IsStorageError(err))

	msgs, err := s.GetConversation(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
