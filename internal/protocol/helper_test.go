package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessage(t *testing.T) {
	// Test creating a simple message
	payload := SearchPayload{GameID: "rmcs", PartySize: 4}
	msg, err := NewMessage(MsgSearch, payload)

	assert.NoError(t, err)
	assert.NotNil(t, msg)
	assert.Equal(t, MsgSearch, msg.Type)
	assert.NotEmpty(t, msg.Payload)
}

func TestNewMessage_NilPayload(t *testing.T) {
	msg, err := NewMessage(MsgGotoLobby, nil)
	assert.NoError(t, err)
	assert.Empty(t, msg.Payload)
}

func TestEncodeDecode(t *testing.T) {
	// Setup original message
	payload := SearchPayload{GameID: "bgo", PartySize: 2}
	originalMsg, err := NewMessage(MsgSearch, payload)
	assert.NoError(t, err)

	// Encode
	bytes, err := originalMsg.Encode()
	assert.NoError(t, err)
	assert.NotEmpty(t, bytes)

	// Decode
	decodedMsg, err := Decode(bytes)
	assert.NoError(t, err)
	assert.NotNil(t, decodedMsg)

	// Verify
	assert.Equal(t, originalMsg.Type, decodedMsg.Type)
	assert.Equal(t, originalMsg.Payload, decodedMsg.Payload)
}

func TestDecode_Invalid(t *testing.T) {
	// Not JSON at all
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)

	// Valid JSON but no type field
	_, err = Decode([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrMissingType)
}

func TestParsePayload(t *testing.T) {
	msg := MustNewMessage(MsgRespawnMe, RespawnMePayload{PlayerID: "p1", Token: "tok"})

	payload, err := ParsePayload[RespawnMePayload](msg)
	assert.NoError(t, err)
	assert.Equal(t, "p1", payload.PlayerID)
	assert.Equal(t, "tok", payload.Token)

	// Mismatched payload shape fails
	bad := &Message{Type: MsgRespawnMe, Payload: []byte(`[1,2,3]`)}
	_, err = ParsePayload[RespawnMePayload](bad)
	assert.Error(t, err)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(ErrCodeBadRespawn)
	assert.Equal(t, MsgError, msg.Type)

	payload, err := ParsePayload[ErrorPayload](msg)
	assert.NoError(t, err)
	assert.Equal(t, ErrCodeBadRespawn, payload.Code)
	assert.Equal(t, ErrorMessages[ErrCodeBadRespawn], payload.Message)

	custom := NewErrorMessageWithText(ErrCodeNotSupported, "custom text")
	payload2, err := ParsePayload[ErrorPayload](custom)
	assert.NoError(t, err)
	assert.Equal(t, "custom text", payload2.Message)
}
