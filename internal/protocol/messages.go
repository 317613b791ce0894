// Package protocol defines the wire format spoken over a collaboration
// websocket: one JSON envelope per frame, tagged by event name.
package protocol

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "joinRoom"
	Body  json.RawMessage `json:"body,omitempty"` // event specific object
}

// Client -> server events.
const (
	EventJoinRoom     = "joinRoom"
	EventUpdateText   = "updateText"
	EventUpdateCursor = "updateCursor"
	EventTyping       = "typing"
	EventStopTyping   = "stopTyping"
	EventChatMessage  = "chatMessage"
	EventLock         = "lock"
	EventUnlock       = "unlock"
)

// Server -> client events.
const (
	EventHostInfo       = "hostInfo"
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventCursorPosition = "cursorPosition"
	EventShowTyping     = "showTyping"
	EventHideTyping     = "hideTyping"
	EventLocked         = "locked"
	EventNotice         = "notice"
	EventError          = "error"
	// updateText, chatMessage and unlock reuse the inbound names.
)

const DefaultDisplayName = "Anonymous"

// ──────────────────────────── inbound bodies ─────────────────────────────────

type JoinRoomRequest struct {
	RoomID      string `json:"roomId"      validate:"required,max=256"`
	UserID      string `json:"userId"      validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

type UpdateTextRequest struct {
	Text string `json:"text"`
}

type UpdateCursorRequest struct {
	UserID      string `json:"userId"`
	Position    int    `json:"position"    validate:"gte=0"`
	DisplayName string `json:"displayName"`
}

// TypingRequest is the body of both "typing" and "stopTyping".
type TypingRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type ChatMessageRequest struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message" validate:"required,max=4096"`
}

// LockRequest is the body of both "lock" and "unlock".
type LockRequest struct {
	UserID string `json:"userId"`
}

// ──────────────────────────── outbound bodies ────────────────────────────────

// Outbound is a server -> client message before encoding.
type Outbound struct {
	Event string
	Body  any
}

// Encode renders the message as an Envelope frame.
func (o Outbound) Encode() ([]byte, error) {
	env := struct {
		Event string `json:"event"`
		Body  any    `json:"body,omitempty"`
	}{o.Event, o.Body}
	return json.Marshal(env)
}

type HostInfoBody struct {
	HostID *string `json:"hostId"` // null when the room is headless
}

type UserJoinedBody struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type UserLeftBody struct {
	UserID string `json:"userId"`
}

type UpdateTextBody struct {
	Text string `json:"text"`
}

type CursorPositionBody struct {
	UserID      string `json:"userId"`
	Position    int    `json:"position"`
	DisplayName string `json:"displayName"`
}

type TypingBody struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName,omitempty"`
}

type ChatMessageBody struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Message     string `json:"message"`
}

type LockedBody struct {
	UserID string `json:"userId"`
}

type NoticeBody struct {
	Message string `json:"message"`
}

// ErrorBody is returned to the offending sender only.
type ErrorBody struct {
	Message string `json:"message"`
}

// ──────────────────────────── constructors ───────────────────────────────────

func HostInfo(hostID string) Outbound {
	body := HostInfoBody{}
	if hostID != "" {
		body.HostID = &hostID
	}
	return Outbound{Event: EventHostInfo, Body: body}
}

func UserJoined(userID, displayName string) Outbound {
	return Outbound{Event: EventUserJoined, Body: UserJoinedBody{UserID: userID, DisplayName: displayName}}
}

func UserLeft(userID string) Outbound {
	return Outbound{Event: EventUserLeft, Body: UserLeftBody{UserID: userID}}
}

func UpdateText(text string) Outbound {
	return Outbound{Event: EventUpdateText, Body: UpdateTextBody{Text: text}}
}

func CursorPosition(userID string, position int, displayName string) Outbound {
	return Outbound{Event: EventCursorPosition, Body: CursorPositionBody{
		UserID: userID, Position: position, DisplayName: displayName,
	}}
}

func ShowTyping(userID, displayName string) Outbound {
	return Outbound{Event: EventShowTyping, Body: TypingBody{UserID: userID, DisplayName: displayName}}
}

func HideTyping(userID string) Outbound {
	return Outbound{Event: EventHideTyping, Body: TypingBody{UserID: userID}}
}

func ChatMessage(userID, displayName, message string) Outbound {
	return Outbound{Event: EventChatMessage, Body: ChatMessageBody{
		UserID: userID, DisplayName: displayName, Message: message,
	}}
}

func Locked(userID string) Outbound {
	return Outbound{Event: EventLocked, Body: LockedBody{UserID: userID}}
}

func Unlocked() Outbound { return Outbound{Event: EventUnlock} }

func Notice(message string) Outbound {
	return Outbound{Event: EventNotice, Body: NoticeBody{Message: message}}
}

func Error(message string) Outbound {
	return Outbound{Event: EventError, Body: ErrorBody{Message: message}}
}
