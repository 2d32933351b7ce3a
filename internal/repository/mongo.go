package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("not found")

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// Repositories bundles the per-collection stores over one database.
type Repositories struct {
	Users         *UserRepo
	Conversations *ConversationRepo
	Messages      *MessageRepo
	Media         *MediaRepo
	ReadStates    *ReadStateRepo
}

func New(client *mongo.Client, database string, log *zap.SugaredLogger) *Repositories {
	db := client.Database(database)
	r := &Repositories{
		Users:         &UserRepo{col: db.Collection("users")},
		Conversations: &ConversationRepo{col: db.Collection("conversations")},
		Messages: &MessageRepo{
			client:   client,
			col:      db.Collection("messages"),
			receipts: db.Collection("message_receipts"),
		},
		Media:      &MediaRepo{col: db.Collection("media")},
		ReadStates: &ReadStateRepo{col: db.Collection("read_states")},
	}
	r.ensureIndexes(db, log)
	return r
}

// collectionIndexes is everything ensureIndexes maintains. The unique index on
// message_receipts backstops exactly-one-receipt-per-(message, participant);
// dedup on media (conversation, content hash) is by convention, not a unique
// index, since two rows legitimately share a hash once a duplicate is
// attached — that index only makes the lookup cheap.
var collectionIndexes = map[string][]mongo.IndexModel{
	"users": {{
		Keys:    bson.D{{Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("external_id_idx"),
	}},
	"messages": {{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("conv_created_idx"),
	}},
	"message_receipts": {{
		Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("message_user_idx"),
	}},
	"media": {{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "content_hash", Value: 1}},
		Options: options.Index().SetName("conv_hash_idx"),
	}},
	"read_states": {{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("conv_user_idx"),
	}},
}

func (r *Repositories) ensureIndexes(db *mongo.Database, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for coll, models := range collectionIndexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			log.Errorw("ensure indexes failed", "collection", coll, "err", err)
		}
	}
}
