package model

import (
	"strings"
	"time"
)

const CollMessage = "message"

// Message is a persisted chat message. Immutable once created; the relay
// only carries it after the store insert succeeds.
type Message struct {
	ID             string    `bson:"_id" json:"id"`
	SenderID       string    `bson:"sender_id" json:"senderId"`
	ReceiverID     string    `bson:"receiver_id" json:"receiverId"`
	Content        string    `bson:"content" json:"content"`
	ConversationID string    `bson:"conversation_id" json:"-"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}

// DMKey builds the direct-conversation id for a user pair; order
// independent so both directions land in the same conversation.
func DMKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + ":" + b
}
