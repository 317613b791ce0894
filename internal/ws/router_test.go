package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabnotes/internal/protocol"
)

func TestRouter_DispatchTypedBody(t *testing.T) {
	r := NewRouter()
	var got protocol.JoinRoomRequest
	Register(r, protocol.EventJoinRoom, func(_ context.Context, _ *ConnContext, req protocol.JoinRoomRequest) error {
		got = req
		return nil
	})

	env := protocol.Envelope{
		Event: protocol.EventJoinRoom,
		Body:  json.RawMessage(`{"roomId":"r1","userId":"u1","displayName":"U"}`),
	}
	require.NoError(t, r.dispatch(context.Background(), &ConnContext{}, env))
	assert.Equal(t, protocol.JoinRoomRequest{RoomID: "r1", UserID: "u1", DisplayName: "U"}, got)
}

func TestRouter_Errors(t *testing.T) {
	r := NewRouter()
	called := false
	Register(r, protocol.EventJoinRoom, func(context.Context, *ConnContext, protocol.JoinRoomRequest) error {
		called = true
		return nil
	})
	Register(r, protocol.EventChatMessage, func(context.Context, *ConnContext, protocol.ChatMessageRequest) error {
		called = true
		return nil
	})

	tests := []struct {
		name string
		env  protocol.Envelope
		want error
	}{
		{"unknown event", protocol.Envelope{Event: "explode"}, ErrUnknownEvent},
		{"malformed body", protocol.Envelope{Event: protocol.EventJoinRoom, Body: json.RawMessage(`[1,2]`)}, ErrInvalidPayload},
		{"missing room id", protocol.Envelope{Event: protocol.EventJoinRoom, Body: json.RawMessage(`{"userId":"u"}`)}, ErrInvalidPayload},
		{"empty body", protocol.Envelope{Event: protocol.EventJoinRoom}, ErrInvalidPayload},
		{"empty chat", protocol.Envelope{Event: protocol.EventChatMessage, Body: json.RawMessage(`{"message":""}`)}, ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.dispatch(context.Background(), &ConnContext{}, tt.env)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.False(t, called)
}

func TestRegister_PanicsOnEmptyEvent(t *testing.T) {
	assert.Panics(t, func() {
		Register(NewRouter(), "", func(context.Context, *ConnContext, protocol.LockRequest) error { return nil })
	})
}
