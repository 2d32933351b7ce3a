package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	var p sendMessagePayload
	assert.ErrorIs(t, decode(nil, &p), errMalformed)
	assert.ErrorIs(t, decode(json.RawMessage(`{`), &p), errMalformed)
	assert.ErrorIs(t, decode(json.RawMessage(`"just a string"`), &p), errMalformed)
}

func TestDecodeSendMessage(t *testing.T) {
	raw := json.RawMessage(`{
		"conversationId": "c1",
		"content": "hello",
		"messageType": "text",
		"mediaIds": ["m1", "m2"],
		"replyToId": "parent"
	}`)
	var p sendMessagePayload
	require.NoError(t, decode(raw, &p))
	assert.Equal(t, "c1", p.ConversationID)
	assert.Equal(t, "hello", p.Content)
	assert.Equal(t, "text", p.MessageType)
	assert.Equal(t, []string{"m1", "m2"}, p.MediaIDs)
	assert.Equal(t, "parent", p.ReplyToID)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	raw := json.RawMessage(`{"conversationId": "c1", "clientVersion": "9.9"}`)
	var p conversationPayload
	require.NoError(t, decode(raw, &p))
	assert.Equal(t, "c1", p.ConversationID)
}

func TestRequireField(t *testing.T) {
	assert.NoError(t, requireField("conversationId", "c1"))
	assert.ErrorIs(t, requireField("conversationId", ""), errMalformed)
}
