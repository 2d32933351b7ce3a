package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/pairchat/internal/models"
)

type MediaRepo struct {
	col *mongo.Collection
}

func (r *MediaRepo) Insert(ctx context.Context, m *models.Media) error {
	_, err := r.col.InsertOne(ctx, m)
	return err
}

func (r *MediaRepo) Get(ctx context.Context, id string) (*models.Media, error) {
	var m models.Media
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindByHash returns the first media row in the conversation with the given
// content hash. Placeholder rows count: a reservation in flight wins the race
// against a second reservation for the same bytes.
func (r *MediaRepo) FindByHash(ctx context.Context, conversationID, contentHash string) (*models.Media, error) {
	var m models.Media
	filter := bson.M{"conversation_id": conversationID, "content_hash": contentHash}
	if err := r.col.FindOne(ctx, filter).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepo) ConfirmUpload(ctx context.Context, id string, fileSize int64, width, height int, duration float64, thumbnailURL string) error {
	set := bson.M{"file_size": fileSize}
	if width > 0 {
		set["width"] = width
	}
	if height > 0 {
		set["height"] = height
	}
	if duration > 0 {
		set["duration"] = duration
	}
	if thumbnailURL != "" {
		set["thumbnail_url"] = thumbnailURL
	}
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MediaRepo) AttachToMessage(ctx context.Context, id, messageID string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"message_id": messageID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MediaRepo) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MediaRepo) ListByMessage(ctx context.Context, messageID string) ([]*models.Media, error) {
	cur, err := r.col.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.Media
	for cur.Next(ctx) {
		var m models.Media
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}
