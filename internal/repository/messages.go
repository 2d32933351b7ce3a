package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/pairchat/internal/models"
)

type MessageRepo struct {
	client   *mongo.Client
	col      *mongo.Collection
	receipts *mongo.Collection
}

// CreateWithReceipts inserts the message and its receipt rows in one
// transaction, so a message never exists with fewer than two receipts.
func (r *MessageRepo) CreateWithReceipts(ctx context.Context, m *models.Message, receipts []*models.MessageReceipt) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	docs := make([]any, len(receipts))
	for i, rc := range receipts {
		docs[i] = rc
	}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.col.InsertOne(sc, m); err != nil {
			return nil, err
		}
		if _, err := r.receipts.InsertMany(sc, docs); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *MessageRepo) Get(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepo) SetDeleteFlag(ctx context.Context, id string, isUser1 bool) error {
	field := "deleted_by_user2"
	if isUser1 {
		field = "deleted_by_user1"
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{field: true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge removes the receipts and then the message row itself; used once both
// delete flags are set.
func (r *MessageRepo) Purge(ctx context.Context, id string) error {
	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.receipts.DeleteMany(sc, bson.M{"message_id": id}); err != nil {
			return nil, err
		}
		if _, err := r.col.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

// UpsertReceipt is last-write-wins: a late out-of-order update can move a
// receipt backwards. That matches the reference behavior; see DESIGN.md.
func (r *MessageRepo) UpsertReceipt(ctx context.Context, rc *models.MessageReceipt) error {
	filter := bson.M{"message_id": rc.MessageID, "user_id": rc.UserID}
	update := bson.M{"$set": bson.M{
		"status":    rc.Status,
		"timestamp": rc.Timestamp.UTC(),
	}}
	_, err := r.receipts.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *MessageRepo) Receipts(ctx context.Context, messageID string) ([]*models.MessageReceipt, error) {
	cur, err := r.receipts.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.MessageReceipt
	for cur.Next(ctx) {
		var rc models.MessageReceipt
		if err := cur.Decode(&rc); err != nil {
			return nil, err
		}
		out = append(out, &rc)
	}
	return out, cur.Err()
}

func deletedField(isUser1 bool) string {
	if isUser1 {
		return "deleted_by_user1"
	}
	return "deleted_by_user2"
}

// ListVisible returns up to limit recent messages of the conversation that the
// requesting participant has not deleted, oldest first.
func (r *MessageRepo) ListVisible(ctx context.Context, conversationID string, isUser1 bool, limit int64) ([]*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID, deletedField(isUser1): false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// LastVisible returns the newest message the participant has not deleted.
func (r *MessageRepo) LastVisible(ctx context.Context, conversationID string, isUser1 bool) (*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID, deletedField(isUser1): false}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var m models.Message
	if err := r.col.FindOne(ctx, filter, opts).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// CountUnread counts messages sent by the peer after the reader's last read
// time, excluding ones the reader deleted.
func (r *MessageRepo) CountUnread(ctx context.Context, conversationID, readerID string, isUser1 bool, since time.Time) (int64, error) {
	filter := bson.M{
		"conversation_id":     conversationID,
		"sender_id":           bson.M{"$ne": readerID},
		"created_at":          bson.M{"$gt": since.UTC()},
		deletedField(isUser1): false,
	}
	return r.col.CountDocuments(ctx, filter)
}
