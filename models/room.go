package models

import "time"

type MessageType string

const (
	MessageText        MessageType = "text"
	MessageImage       MessageType = "image"
	MessageCredentials MessageType = "credentials"
	MessageSystem      MessageType = "system"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageCredentials, MessageSystem:
		return true
	}
	return false
}

// MessageState tracks the lifecycle of a message. Deleted messages keep their
// content for the audit view and are filtered out of regular reads.
type MessageState string

const (
	MessageActive  MessageState = "active"
	MessageEdited  MessageState = "edited"
	MessageDeleted MessageState = "deleted"
)

// Room is the message container of exactly one group.
type Room struct {
	ID        int       `json:"id" db:"id"`
	GroupID   int       `json:"group_id" db:"group_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Messages []Message `json:"messages,omitempty" db:"-"`
}

type Message struct {
	ID        string       `json:"id" db:"id"`
	RoomID    int          `json:"room_id" db:"room_id"`
	SenderID  int          `json:"sender_id" db:"sender_id"`
	Type      MessageType  `json:"type" db:"type"`
	Content   string       `json:"content" db:"content"`
	ImageURL  *string      `json:"image_url,omitempty" db:"image_url"`
	State     MessageState `json:"state" db:"state"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	EditedAt  *time.Time   `json:"edited_at,omitempty" db:"edited_at"`
}
