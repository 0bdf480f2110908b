package model

import "time"

type Conversation struct {
	ID            string    `json:"id" bson:"_id"`
	Participants  []string  `json:"participants" bson:"participants"`
	LastMessage   string    `json:"last_message" bson:"last_message"`
	LastMessageAt time.Time `json:"last_message_at" bson:"last_message_at"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
}

// ConversationID is stable for a pair of users regardless of order.
func ConversationID(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

type Message struct {
	ID             string     `json:"id,omitempty" bson:"_id,omitempty"`
	ConversationID string     `json:"conversation_id" bson:"conversation_id"`
	SenderID       string     `json:"sender_id" bson:"sender_id"`
	ReceiverID     string     `json:"receiver_id" bson:"receiver_id"`
	Content        string     `json:"content" bson:"content"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty" bson:"read_at"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,mongodb"`
	Content    string `json:"content" validate:"required,min=1,max=2000"`
}

type ConversationSummary struct {
	Conversation
	OtherUserID string `json:"other_user_id"`
	UnreadCount int64  `json:"unread_count"`
}
