package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostInfoEncodesNullForHeadlessRoom(t *testing.T) {
	raw, err := HostInfo("").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"hostInfo","body":{"hostId":null}}`, string(raw))

	raw, err = HostInfo("alice").Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"hostInfo","body":{"hostId":"alice"}}`, string(raw))
}

func TestUnlockHasNoBody(t *testing.T) {
	raw, err := Unlocked().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"unlock"}`, string(raw))
}

func TestCursorPositionFieldNames(t *testing.T) {
	raw, err := CursorPosition("bob", 12, "Bob").Encode()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"event":"cursorPosition","body":{"userId":"bob","position":12,"displayName":"Bob"}}`,
		string(raw))
}
