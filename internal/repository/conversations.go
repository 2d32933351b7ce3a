package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/pairchat/internal/models"
)

type ConversationRepo struct {
	col *mongo.Collection
}

func (r *ConversationRepo) Get(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	c, err := r.Get(ctx, conversationID)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return c.HasParticipant(userID), nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	filter := bson.M{"$or": bson.A{bson.M{"user1_id": userID}, bson.M{"user2_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.Conversation
	for cur.Next(ctx) {
		var c models.Conversation
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

// FindByPair returns the conversation between the two users regardless of
// which position each holds.
func (r *ConversationRepo) FindByPair(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"user1_id": userA, "user2_id": userB},
		bson.M{"user1_id": userB, "user2_id": userA},
	}}
	var c models.Conversation
	if err := r.col.FindOne(ctx, filter).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, user1, user2 string) (*models.Conversation, error) {
	now := time.Now().UTC()
	c := &models.Conversation{
		ID:            uuid.New().String(),
		User1ID:       user1,
		User2ID:       user2,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := r.col.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"last_message_at": at.UTC(),
		"updated_at":      at.UTC(),
	}})
	return err
}
