package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"otithi/internal/auth"
	messageserrors "otithi/internal/messages/errors"
	"otithi/internal/messages/validator"
	userserrors "otithi/internal/users/errors"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	aliceID = "65f1a2b3c4d5e6f708090a01"
	bobID   = "65f1a2b3c4d5e6f708090a02"
	carolID = "65f1a2b3c4d5e6f708090a03"
)

var (
	alice = &auth.Principal{UserID: aliceID, Role: model.RoleGuest}
	bob   = &auth.Principal{UserID: bobID, Role: model.RoleHost}
	carol = &auth.Principal{UserID: carolID, Role: model.RoleGuest}
)

type mockMessageRepository struct {
	messages []*model.Message
}

func (m *mockMessageRepository) Create(_ context.Context, msg *model.Message) error {
	msg.ID = fmt.Sprintf("6900000000000000000000%02d", len(m.messages)+1)
	copied := *msg
	m.messages = append(m.messages, &copied)
	return nil
}

func (m *mockMessageRepository) FindByID(_ context.Context, id string) (*model.Message, error) {
	for _, msg := range m.messages {
		if msg.ID == id {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, messageserrors.ErrNotFound
}

func (m *mockMessageRepository) FindByConversation(_ context.Context, id string, _ int, _ int64) ([]*model.Message, error) {
	var out []*model.Message
	for _, msg := range m.messages {
		if msg.ConversationID == id {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockMessageRepository) CountByConversation(ctx context.Context, id string) (int64, error) {
	found, _ := m.FindByConversation(ctx, id, 0, 0)
	return int64(len(found)), nil
}

func (m *mockMessageRepository) mark(match func(*model.Message) bool, at time.Time) int64 {
	var n int64
	for _, msg := range m.messages {
		if msg.ReadAt == nil && match(msg) {
			t := at
			msg.ReadAt = &t
			n++
		}
	}
	return n
}

func (m *mockMessageRepository) MarkRead(_ context.Context, id, receiverID string, at time.Time) error {
	m.mark(func(msg *model.Message) bool { return msg.ID == id && msg.ReceiverID == receiverID }, at)
	return nil
}

func (m *mockMessageRepository) MarkConversationRead(_ context.Context, convID, receiverID string, at time.Time) (int64, error) {
	return m.mark(func(msg *model.Message) bool {
		return msg.ConversationID == convID && msg.ReceiverID == receiverID
	}, at), nil
}

func (m *mockMessageRepository) MarkAllRead(_ context.Context, receiverID string, at time.Time) (int64, error) {
	return m.mark(func(msg *model.Message) bool { return msg.ReceiverID == receiverID }, at), nil
}

func (m *mockMessageRepository) CountUnread(_ context.Context, receiverID string) (int64, error) {
	var n int64
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (m *mockMessageRepository) UnreadByConversation(_ context.Context, receiverID string, ids []string) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.ReadAt == nil {
			counts[msg.ConversationID]++
		}
	}
	return counts, nil
}

func (m *mockMessageRepository) DeleteByUser(context.Context, string) error { return nil }

func (m *mockMessageRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockConversationRepository struct {
	convs map[string]*model.Conversation
}

func (m *mockConversationRepository) Touch(_ context.Context, id string, participants []string, last string, at time.Time) error {
	c, ok := m.convs[id]
	if !ok {
		c = &model.Conversation{ID: id, Participants: participants, CreatedAt: at}
		m.convs[id] = c
	}
	c.LastMessage, c.LastMessageAt = last, at
	return nil
}

func (m *mockConversationRepository) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	if c, ok := m.convs[id]; ok {
		return c, nil
	}
	return nil, messageserrors.ErrConversationNotFound
}

func (m *mockConversationRepository) FindByParticipant(_ context.Context, userID string, _ int, _ int64) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, c := range m.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (m *mockConversationRepository) CountByParticipant(ctx context.Context, userID string) (int64, error) {
	found, _ := m.FindByParticipant(ctx, userID, 0, 0)
	return int64(len(found)), nil
}

func (m *mockConversationRepository) DeleteByParticipant(context.Context, string) error { return nil }

type mockUserReader struct{}

func (mockUserReader) FindByID(_ context.Context, id string) (*model.User, error) {
	switch id {
	case aliceID, bobID, carolID:
		return &model.User{ID: id}, nil
	}
	return nil, userserrors.ErrNotFound
}

type push struct {
	userID    string
	eventType string
}

type recordingPusher struct {
	pushes []push
}

func (p *recordingPusher) Push(userID, eventType string, _ any) int {
	p.pushes = append(p.pushes, push{userID, eventType})
	return 1
}

type countingPublisher struct {
	types []string
}

func (p *countingPublisher) Publish(_ context.Context, eventType, _ string, _ any) error {
	p.types = append(p.types, eventType)
	return nil
}

func (p *countingPublisher) Close() error { return nil }

type fixture struct {
	svc      *messageService
	messages *mockMessageRepository
	convs    *mockConversationRepository
	pusher   *recordingPusher
	events   *countingPublisher
	clock    time.Time
}

func newFixture() *fixture {
	log := logger.Discard()
	f := &fixture{
		messages: &mockMessageRepository{},
		convs:    &mockConversationRepository{convs: map[string]*model.Conversation{}},
		pusher:   &recordingPusher{},
		events:   &countingPublisher{},
		clock:    time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &messageService{
		messages:      f.messages,
		conversations: f.convs,
		users:         mockUserReader{},
		pusher:        f.pusher,
		events:        f.events,
		validator:     validator.NewMessageValidator(log),
		cfg:           &config.Config{Log: log},
		now: func() time.Time {
			f.clock = f.clock.Add(time.Minute)
			return f.clock
		},
	}
	return f
}

func statusOf(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return 0
}

func send(t *testing.T, f *fixture, from *auth.Principal, to, content string) *model.Message {
	t.Helper()
	msg, err := f.svc.Send(context.Background(), from, &model.SendMessageRequest{ReceiverID: to, Content: content})
	require.NoError(t, err)
	return msg
}

func TestSend(t *testing.T) {
	f := newFixture()

	msg := send(t, f, alice, bobID, "Is the flat free in June?")

	convID := model.ConversationID(aliceID, bobID)
	assert.Equal(t, convID, msg.ConversationID)
	assert.Equal(t, aliceID+"_"+bobID, convID)
	require.Contains(t, f.convs.convs, convID)
	assert.Equal(t, "Is the flat free in June?", f.convs.convs[convID].LastMessage)
	assert.ElementsMatch(t, []string{aliceID, bobID}, f.convs.convs[convID].Participants)

	assert.Equal(t, []push{{bobID, PushMessage}}, f.pusher.pushes)
	assert.Equal(t, []string{model.EventMessageSent}, f.events.types)

	reply := send(t, f, bob, aliceID, "Yes it is")
	assert.Equal(t, convID, reply.ConversationID, "both directions share one conversation")
	assert.Len(t, f.convs.convs, 1)
}

func TestSend_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		req        *model.SendMessageRequest
		wantStatus int
	}{
		{"to self", &model.SendMessageRequest{ReceiverID: aliceID, Content: "hi"}, http.StatusBadRequest},
		{"empty content", &model.SendMessageRequest{ReceiverID: bobID, Content: "   "}, http.StatusUnprocessableEntity},
		{"unknown receiver", &model.SendMessageRequest{ReceiverID: "65f1a2b3c4d5e6f708090aff", Content: "hi"}, http.StatusNotFound},
		{"bad receiver id", &model.SendMessageRequest{ReceiverID: "bob", Content: "hi"}, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Send(context.Background(), alice, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, statusOf(err))
			assert.Empty(t, f.messages.messages)
		})
	}
}

func TestSend_LongContentIsTruncatedInPreview(t *testing.T) {
	f := newFixture()
	send(t, f, alice, bobID, strings.Repeat("a", 500))

	last := f.convs.convs[model.ConversationID(aliceID, bobID)].LastMessage
	assert.Len(t, []rune(last), previewLen)
}

func TestConversations_UnreadCounts(t *testing.T) {
	f := newFixture()
	send(t, f, alice, bobID, "one")
	send(t, f, alice, bobID, "two")
	send(t, f, carol, bobID, "hello from carol")

	summaries, total, err := f.svc.Conversations(context.Background(), bob, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, summaries, 2)

	assert.Equal(t, carolID, summaries[0].OtherUserID, "newest conversation first")
	assert.Equal(t, int64(1), summaries[0].UnreadCount)
	assert.Equal(t, aliceID, summaries[1].OtherUserID)
	assert.Equal(t, int64(2), summaries[1].UnreadCount)

	aliceView, _, err := f.svc.Conversations(context.Background(), alice, 10, 0)
	require.NoError(t, err)
	require.Len(t, aliceView, 1)
	assert.Zero(t, aliceView[0].UnreadCount)
}

func TestMessages_MarksReceivedAsRead(t *testing.T) {
	f := newFixture()
	send(t, f, alice, bobID, "one")
	send(t, f, bob, aliceID, "two")
	convID := model.ConversationID(aliceID, bobID)

	msgs, total, err := f.svc.Messages(context.Background(), bob, convID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, msgs, 2)
	assert.Equal(t, "one", msgs[0].Content)
	assert.NotNil(t, msgs[0].ReadAt, "bob received this one")
	assert.Nil(t, msgs[1].ReadAt, "alice has not read bob's reply")

	assert.Contains(t, f.pusher.pushes, push{aliceID, PushRead})

	_, _, err = f.svc.Messages(context.Background(), carol, convID, 10, 0)
	assert.Equal(t, http.StatusForbidden, statusOf(err))

	_, _, err = f.svc.Messages(context.Background(), carol, "missing", 10, 0)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestMarkRead(t *testing.T) {
	f := newFixture()
	msg := send(t, f, alice, bobID, "hi")

	_, err := f.svc.MarkRead(context.Background(), alice, msg.ID)
	assert.Equal(t, http.StatusForbidden, statusOf(err), "sender cannot mark read")

	read, err := f.svc.MarkRead(context.Background(), bob, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	first := *read.ReadAt

	again, err := f.svc.MarkRead(context.Background(), bob, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *again.ReadAt, "already read messages keep their timestamp")

	_, err = f.svc.MarkRead(context.Background(), bob, "6900000000000000000000ff")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestUnreadAndMarkAll(t *testing.T) {
	f := newFixture()
	send(t, f, alice, bobID, "one")
	send(t, f, carol, bobID, "two")
	send(t, f, bob, aliceID, "three")

	count, err := f.svc.UnreadCount(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	marked, err := f.svc.MarkConversationRead(context.Background(), bob, model.ConversationID(bobID, carolID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	marked, err = f.svc.MarkAllRead(context.Background(), bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	count, err = f.svc.UnreadCount(context.Background(), bob)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = f.svc.UnreadCount(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
