package service

import (
	"context"
	"errors"
	"otithi/internal/auth"
	"otithi/internal/events"
	messageserrors "otithi/internal/messages/errors"
	"otithi/internal/messages/repository"
	"otithi/internal/messages/validator"
	userserrors "otithi/internal/users/errors"
	"otithi/pkg/config"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/model"
	"otithi/pkg/sanitizer"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	maxContentLen = 2000
	previewLen    = 120

	PushMessage = "message"
	PushRead    = "read"
)

type UserReader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Pusher delivers live events to a user's open connections.
type Pusher interface {
	Push(userID, eventType string, payload any) int
}

type MessageService interface {
	Send(ctx context.Context, p *auth.Principal, req *model.SendMessageRequest) (*model.Message, error)
	Conversations(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.ConversationSummary, int64, error)
	Messages(ctx context.Context, p *auth.Principal, conversationID string, limit int, offset int64) ([]*model.Message, int64, error)
	MarkRead(ctx context.Context, p *auth.Principal, messageID string) (*model.Message, error)
	MarkConversationRead(ctx context.Context, p *auth.Principal, conversationID string) (int64, error)
	MarkAllRead(ctx context.Context, p *auth.Principal) (int64, error)
	UnreadCount(ctx context.Context, p *auth.Principal) (int64, error)
}

type messageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	users         UserReader
	pusher        Pusher
	events        events.Publisher
	validator     *validator.MessageValidator
	cfg           *config.Config
	now           func() time.Time
}

func NewMessageService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	users UserReader,
	pusher Pusher,
	publisher events.Publisher,
	validator *validator.MessageValidator,
	cfg *config.Config,
) MessageService {
	return &messageService{
		messages:      messages,
		conversations: conversations,
		users:         users,
		pusher:        pusher,
		events:        publisher,
		validator:     validator,
		cfg:           cfg,
		now:           time.Now,
	}
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLen {
		return content
	}
	return string(runes[:previewLen-1]) + "…"
}

func (s *messageService) Send(ctx context.Context, p *auth.Principal, req *model.SendMessageRequest) (*model.Message, error) {
	req.Content = sanitizer.SanitizeText(req.Content, maxContentLen)
	if err := s.validator.ValidateSend(req); err != nil {
		s.cfg.Log.Warn("Message validation failed",
			"sender_id", p.UserID,
			"error", err,
		)
		return nil, apperrors.Validation("Message validation failed", map[string]any{
			"error": err.Error(),
		})
	}
	if req.ReceiverID == p.UserID {
		return nil, apperrors.InvalidInput("Cannot send a message to yourself")
	}

	if _, err := s.users.FindByID(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("User", req.ReceiverID)
		}
		s.cfg.Log.Error("Failed to load receiver", "receiver_id", req.ReceiverID, "error", err)
		return nil, apperrors.Internal("Failed to send message", err)
	}

	now := s.now()
	conversationID := model.ConversationID(p.UserID, req.ReceiverID)
	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       p.UserID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		CreatedAt:      now,
	}

	participants := []string{p.UserID, req.ReceiverID}
	err := s.messages.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.conversations.Touch(sessCtx, conversationID, participants, preview(req.Content), now); err != nil {
			return err
		}
		return s.messages.Create(sessCtx, msg)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to send message",
			"sender_id", p.UserID,
			"receiver_id", req.ReceiverID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to send message", err)
	}

	delivered := s.pusher.Push(req.ReceiverID, PushMessage, msg)
	events.Emit(ctx, s.events, s.cfg.Log, model.EventMessageSent, conversationID, model.MessageEvent{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
	})

	s.cfg.Log.Debug("Message sent",
		"message_id", msg.ID,
		"conversation_id", conversationID,
		"live_deliveries", delivered,
	)
	return msg, nil
}

func (s *messageService) Conversations(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.ConversationSummary, int64, error) {
	total, err := s.conversations.CountByParticipant(ctx, p.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to count conversations", "user_id", p.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count conversations", err)
	}

	convs, err := s.conversations.FindByParticipant(ctx, p.UserID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to find conversations", "user_id", p.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve conversations", err)
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	unread, err := s.messages.UnreadByConversation(ctx, p.UserID, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to count unread messages", "user_id", p.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve conversations", err)
	}

	summaries := make([]*model.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summaries = append(summaries, &model.ConversationSummary{
			Conversation: *c,
			OtherUserID:  c.Other(p.UserID),
			UnreadCount:  unread[c.ID],
		})
	}
	return summaries, total, nil
}

func (s *messageService) loadConversation(ctx context.Context, p *auth.Principal, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Conversation ID cannot be empty")
	}
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, messageserrors.ErrConversationNotFound) {
			return nil, apperrors.NotFoundWithID("Conversation", id)
		}
		s.cfg.Log.Error("Failed to retrieve conversation", "conversation_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve conversation", err)
	}
	if !conv.HasParticipant(p.UserID) {
		return nil, apperrors.Forbidden("Not a participant in this conversation")
	}
	return conv, nil
}

// Messages returns the page oldest first and marks what the caller received
// as read.
func (s *messageService) Messages(ctx context.Context, p *auth.Principal, conversationID string, limit int, offset int64) ([]*model.Message, int64, error) {
	conv, err := s.loadConversation(ctx, p, conversationID)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.markConversation(ctx, p, conv); err != nil {
		return nil, 0, err
	}

	total, err := s.messages.CountByConversation(ctx, conv.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to count messages", "conversation_id", conv.ID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count messages", err)
	}
	msgs, err := s.messages.FindByConversation(ctx, conv.ID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to find messages", "conversation_id", conv.ID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve messages", err)
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return msgs, total, nil
}

func (s *messageService) markConversation(ctx context.Context, p *auth.Principal, conv *model.Conversation) (int64, error) {
	marked, err := s.messages.MarkConversationRead(ctx, conv.ID, p.UserID, s.now())
	if err != nil {
		s.cfg.Log.Error("Failed to mark conversation read", "conversation_id", conv.ID, "error", err)
		return 0, apperrors.Internal("Failed to mark messages read", err)
	}
	if marked > 0 {
		s.pusher.Push(conv.Other(p.UserID), PushRead, map[string]any{
			"conversation_id": conv.ID,
			"reader_id":       p.UserID,
		})
	}
	return marked, nil
}

func (s *messageService) MarkRead(ctx context.Context, p *auth.Principal, messageID string) (*model.Message, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		switch {
		case errors.Is(err, messageserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Message", messageID)
		case errors.Is(err, messageserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid message ID format")
		}
		s.cfg.Log.Error("Failed to retrieve message", "message_id", messageID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve message", err)
	}
	if msg.ReceiverID != p.UserID {
		return nil, apperrors.Forbidden("Only the receiver can mark a message read")
	}
	if msg.ReadAt != nil {
		return msg, nil
	}

	now := s.now()
	if err := s.messages.MarkRead(ctx, messageID, p.UserID, now); err != nil {
		s.cfg.Log.Error("Failed to mark message read", "message_id", messageID, "error", err)
		return nil, apperrors.Internal("Failed to mark message read", err)
	}
	msg.ReadAt = &now
	return msg, nil
}

func (s *messageService) MarkConversationRead(ctx context.Context, p *auth.Principal, conversationID string) (int64, error) {
	conv, err := s.loadConversation(ctx, p, conversationID)
	if err != nil {
		return 0, err
	}
	return s.markConversation(ctx, p, conv)
}

func (s *messageService) MarkAllRead(ctx context.Context, p *auth.Principal) (int64, error) {
	marked, err := s.messages.MarkAllRead(ctx, p.UserID, s.now())
	if err != nil {
		s.cfg.Log.Error("Failed to mark all messages read", "user_id", p.UserID, "error", err)
		return 0, apperrors.Internal("Failed to mark messages read", err)
	}
	return marked, nil
}

func (s *messageService) UnreadCount(ctx context.Context, p *auth.Principal) (int64, error) {
	count, err := s.messages.CountUnread(ctx, p.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to count unread messages", "user_id", p.UserID, "error", err)
		return 0, apperrors.Internal("Failed to count unread messages", err)
	}
	return count, nil
}
