package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/pairchat/internal/models"
)

type ReadStateRepo struct {
	col *mongo.Collection
}

func (r *ReadStateRepo) Upsert(ctx context.Context, conversationID, userID string, readAt time.Time) error {
	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	update := bson.M{"$set": bson.M{"read_at": readAt.UTC()}}
	_, err := r.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// Get returns the zero time when the participant has never marked the
// conversation read, so every message counts as unread.
func (r *ReadStateRepo) Get(ctx context.Context, conversationID, userID string) (time.Time, error) {
	var rs models.ConversationReadState
	filter := bson.M{"conversation_id": conversationID, "user_id": userID}
	if err := r.col.FindOne(ctx, filter).Decode(&rs); err != nil {
		if err == mongo.ErrNoDocuments {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return rs.ReadAt, nil
}
