// Package message is the Mongo-backed message store: the single source of
// truth the relay persists into before any live delivery happens.
package message

import (
	"context"
	"time"

	chatmodel "PRelay/module/chat/model"
	"PRelay/tools/errs"
	"PRelay/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	msgColl *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{msgColl: db.Collection(chatmodel.CollMessage)}
}

// Create validates, assigns the server id, and inserts the message. Any
// persistence failure (including context expiry) surfaces as ErrStore.
func (s *Store) Create(ctx context.Context, senderID, receiverID, content string) (*chatmodel.Message, error) {
	if senderID == "" || receiverID == "" || content == "" {
		return nil, errs.ErrMalformedEvent.WrapMsg("sender, receiver and content are required")
	}

	msg := &chatmodel.Message{
		ID:             ids.GenerateString(),
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
		ConversationID: chatmodel.DMKey(senderID, receiverID),
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := s.msgColl.InsertOne(ctx, msg); err != nil {
		return nil, errs.ErrStore.WrapMsg("insert message", "sender", senderID, "receiver", receiverID, "cause", err)
	}
	return msg, nil
}

// ListConversation returns up to limit messages of the (a, b) conversation,
// oldest first.
func (s *Store) ListConversation(ctx context.Context, a, b string, limit int64) ([]chatmodel.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	filter := bson.M{"conversation_id": chatmodel.DMKey(a, b)}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cur, err := s.msgColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("find conversation", "a", a, "b", b, "cause", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []chatmodel.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStore.WrapMsg("decode conversation", "cause", err)
	}
	return out, nil
}
