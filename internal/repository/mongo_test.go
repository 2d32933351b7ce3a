package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestReceiptIndexBacksExactlyOnePerParticipant(t *testing.T) {
	models := collectionIndexes["message_receipts"]
	require.Len(t, models, 1)

	keys, ok := models[0].Keys.(bson.D)
	require.True(t, ok)
	require.Len(t, keys, 2)
	assert.Equal(t, "message_id", keys[0].Key)
	assert.Equal(t, "user_id", keys[1].Key)

	require.NotNil(t, models[0].Options.Unique)
	assert.True(t, *models[0].Options.Unique)
}

func TestMediaHashIndexIsNotUnique(t *testing.T) {
	models := collectionIndexes["media"]
	require.Len(t, models, 1)
	// duplicate attachments create a second row with the same hash
	assert.Nil(t, models[0].Options.Unique)
}

func TestExternalIDIndexIsUnique(t *testing.T) {
	models := collectionIndexes["users"]
	require.Len(t, models, 1)
	require.NotNil(t, models[0].Options.Unique)
	assert.True(t, *models[0].Options.Unique)
}
