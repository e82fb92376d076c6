package chat_service

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/khadka27/assignmentghar-chat/config"
	"github.com/khadka27/assignmentghar-chat/internal/dtos/chat_dto"
	"github.com/khadka27/assignmentghar-chat/internal/entity"
	app_error "github.com/khadka27/assignmentghar-chat/internal/errors"
	"github.com/khadka27/assignmentghar-chat/state"

	"github.com/google/uuid"
)

type fakeChatRepo struct {
	mu sync.Mutex

	conversations map[string]*entity.Conversation
	participants  map[string][]string
	messages      map[string][]*entity.Message
	failConvID    string

	listConvCalls int
	touched       []string
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		conversations: make(map[string]*entity.Conversation),
		participants:  make(map[string][]string),
		messages:      make(map[string][]*entity.Message),
	}
}

func (f *fakeChatRepo) addConversation(users ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &entity.Conversation{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	id := conv.ID.String()
	f.conversations[id] = conv
	f.participants[id] = users
	return id
}

func (f *fakeChatRepo) addMessage(conversationID string, msg *entity.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = bson.NewObjectID()
	msg.ConversationID = conversationID
	f.messages[conversationID] = append(f.messages[conversationID], msg)
}

func (f *fakeChatRepo) FindOrCreateConversation(_ context.Context, senderID, receiverID string) (*entity.Conversation, *app_error.AppError) {
	id := f.addConversation(senderID, receiverID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[id], nil
}

func (f *fakeChatRepo) FindConversationByID(_ context.Context, conversationID string) (*entity.Conversation, *app_error.AppError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conversationID == f.failConvID && conversationID != "" {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "conversation lookup failed", "postgres")
	}
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "conversation-id")
	}
	return conv, nil
}

func (f *fakeChatRepo) FindParticipants(_ context.Context, conversationID string) ([]string, *app_error.AppError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants[conversationID], nil
}

func (f *fakeChatRepo) ListConversationIDs(_ context.Context, userID string) ([]string, *app_error.AppError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listConvCalls++
	var ids []string
	for id, users := range f.participants {
		for _, u := range users {
			if u == userID {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (f *fakeChatRepo) TouchConversation(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, conversationID)
	return nil
}

func (f *fakeChatRepo) CreateMessage(_ context.Context, msg *entity.Message) (bson.ObjectID, *app_error.AppError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = bson.NewObjectID()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)
	return msg.ID, nil
}

func (f *fakeChatRepo) FindMessageByID(_ context.Context, messageID string) (*entity.Message, *app_error.AppError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msgs := range f.messages {
		for _, m := range msgs {
			if m.ID.Hex() == messageID {
				return m, nil
			}
		}
	}
	return nil, app_error.NewAppError(http.StatusNotFound, "message not found", "message-id")
}

func (f *fakeChatRepo) ListMessages(_ context.Context, conversationID string, limit int, beforeID *string) ([]*entity.Message, *app_error.AppError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*entity.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeChatRepo) FindLastMessage(_ context.Context, conversationID string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[conversationID]
	if len(msgs) == 0 {
		return nil, nil
	}
	return msgs[len(msgs)-1], nil
}

func (f *fakeChatRepo) FindUnreadMessageIDs(_ context.Context, _, _ string) ([]bson.ObjectID, error) {
	return nil, nil
}

func (f *fakeChatRepo) CountUnread(_ context.Context, conversationID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages[conversationID] {
		if m.ReceiverID != userID {
			continue
		}
		read := false
		for _, r := range m.ReadReceipts {
			if r.UserID == userID {
				read = true
			}
		}
		if !read {
			n++
		}
	}
	return n, nil
}

func (f *fakeChatRepo) BulkInsertReceipts(_ context.Context, messageIDs []bson.ObjectID, _ string, _ time.Time) (int64, error) {
	return int64(len(messageIDs)), nil
}

func (f *fakeChatRepo) UpsertUserStatus(_ context.Context, _ string, _ bool) error { return nil }

func (f *fakeChatRepo) UpsertTypingIndicator(_ context.Context, _, _ string) error { return nil }

func (f *fakeChatRepo) DeleteTypingIndicator(_ context.Context, _, _ string) error { return nil }

func (f *fakeChatRepo) UserExists(_ context.Context, _ string) (bool, error) { return true, nil }

func newTestService(t *testing.T) (*ChatService, *fakeChatRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := newFakeChatRepo()
	svc := &ChatService{
		AppState: &state.AppState{Ctx: context.Background(), Redis: rdb},
		ChatRepo: repo,
	}
	return svc, repo, mr
}

func TestCreateConversationRejectsSelfChat(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, appErr := svc.CreateConversation(context.Background(), "alice", "alice")
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Nil(t, resp)
}

func TestCreateConversation(t *testing.T) {
	svc, _, _ := newTestService(t)

	resp, appErr := svc.CreateConversation(context.Background(), "alice", "bob")
	require.Nil(t, appErr)
	assert.NotEmpty(t, resp.ConversationID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, resp.Participants)
}

func TestListChatsServesFromCacheWithinTTL(t *testing.T) {
	svc, repo, _ := newTestService(t)

	convID := repo.addConversation("alice", "bob")
	repo.addMessage(convID, &entity.Message{SenderID: "bob", ReceiverID: "alice", Content: "hi", Kind: entity.MessageKindText, CreatedAt: time.Now()})

	first, appErr := svc.ListChats(context.Background(), "alice")
	require.Nil(t, appErr)
	require.Len(t, first.Chats, 1)
	assert.Equal(t, int64(1), first.Chats[0].UnreadCount)
	assert.Equal(t, 1, repo.listConvCalls)

	second, appErr := svc.ListChats(context.Background(), "alice")
	require.Nil(t, appErr)
	require.Len(t, second.Chats, 1)
	assert.Equal(t, 1, repo.listConvCalls, "second call must hit the cache")
}

func TestListChatsSkipsConversationsThatFailToLoad(t *testing.T) {
	svc, repo, _ := newTestService(t)

	good := repo.addConversation("alice", "bob")
	bad := repo.addConversation("alice", "carol")
	repo.failConvID = bad

	resp, appErr := svc.ListChats(context.Background(), "alice")
	require.Nil(t, appErr)
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, good, resp.Chats[0].ConversationID)
}

func TestListChatsCacheExpires(t *testing.T) {
	svc, repo, mr := newTestService(t)

	repo.addConversation("alice", "bob")

	_, appErr := svc.ListChats(context.Background(), "alice")
	require.Nil(t, appErr)

	mr.FastForward(chatListCacheTTL + time.Second)

	_, appErr = svc.ListChats(context.Background(), "alice")
	require.Nil(t, appErr)
	assert.Equal(t, 2, repo.listConvCalls)
}

func TestPostMessageRequiresParticipant(t *testing.T) {
	svc, repo, _ := newTestService(t)

	convID := repo.addConversation("alice", "bob")

	_, appErr := svc.PostMessage(context.Background(), chat_dto.PostMessageRequest{
		ReceiverID: "bob",
		Content:    "hi",
	}, "mallory", convID)

	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestPostMessagePersistsAndInvalidatesCache(t *testing.T) {
	svc, repo, mr := newTestService(t)

	convID := repo.addConversation("alice", "bob")

	// warm the sender's chat list cache
	_, appErr := svc.ListChats(context.Background(), "alice")
	require.Nil(t, appErr)
	require.True(t, mr.Exists("chats:alice"))

	resp, appErr := svc.PostMessage(context.Background(), chat_dto.PostMessageRequest{
		ReceiverID: "bob",
		Content:    "hello bob",
	}, "alice", convID)
	require.Nil(t, appErr)

	assert.NotEmpty(t, resp.MessageID)
	assert.Equal(t, "TEXT", resp.Kind)
	assert.Equal(t, []string{convID}, repo.touched)
	assert.False(t, mr.Exists("chats:alice"))
	assert.False(t, mr.Exists("chats:bob"))
}

func TestPostMessageUnknownConversation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, appErr := svc.PostMessage(context.Background(), chat_dto.PostMessageRequest{
		ReceiverID: "bob",
		Content:    "hi",
	}, "alice", uuid.New().String())

	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}

func TestListMessagesDefaultsAndCursor(t *testing.T) {
	svc, repo, _ := newTestService(t)

	convID := repo.addConversation("alice", "bob")
	for i := 0; i < 25; i++ {
		repo.addMessage(convID, &entity.Message{SenderID: "bob", ReceiverID: "alice", Content: "m", Kind: entity.MessageKindText, CreatedAt: time.Now()})
	}

	resp, appErr := svc.ListMessages(context.Background(), chat_dto.ListMessagesRequest{}, convID)
	require.Nil(t, appErr)

	assert.Len(t, resp.Messages, 20)
	assert.True(t, resp.HasMore)
	require.NotNil(t, resp.NextCursor)
	assert.Equal(t, resp.Messages[0].ID.Hex(), *resp.NextCursor)
}

func TestSaveAttachmentCreatesFileMessage(t *testing.T) {
	svc, repo, _ := newTestService(t)

	dir := t.TempDir()
	prev := config.Conf
	config.Conf = &config.AppConfig{}
	config.Conf.UPLOADS.Dir = dir
	config.Conf.UPLOADS.BaseURL = "/uploads"
	t.Cleanup(func() { config.Conf = prev })

	convID := repo.addConversation("alice", "bob")

	resp, appErr := svc.SaveAttachment(context.Background(), "alice", convID, "notes.pdf", "application/pdf", 0, strings.NewReader("file-bytes"))
	require.Nil(t, appErr)

	assert.Equal(t, "FILE", resp.Kind)
	assert.Equal(t, "bob", resp.ReceiverID)
	require.Len(t, resp.Attachments, 1)
	assert.Equal(t, "notes.pdf", resp.Attachments[0].FileName)
	assert.Equal(t, int64(len("file-bytes")), resp.Attachments[0].Size)
	assert.True(t, strings.HasPrefix(resp.Attachments[0].URL, "/uploads/"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".pdf", filepath.Ext(entries[0].Name()))
}
