package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/yourorg/pairchat/internal/models"
)

type UserRepo struct {
	col *mongo.Collection
}

func (r *UserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByExternalID resolves the stable identity string issued by the external
// token verifier to the local user row.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"external_id": externalID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetStatus(ctx context.Context, userID, status string, lastSeen time.Time) error {
	res, err := r.col.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"status":    status,
		"last_seen": lastSeen.UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) ListByStatus(ctx context.Context, status string) ([]*models.User, error) {
	cur, err := r.col.Find(ctx, bson.M{"status": status})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.User
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}
