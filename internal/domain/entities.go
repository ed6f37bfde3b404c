package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CanModerate reports whether the role is allowed to delete other users'
// messages.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
	ModerationFlagged  ModerationStatus = "flagged"
)

type User struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	Role       Role   `json:"role,omitempty"`
	Level      int    `json:"current_level,omitempty"`
	Psychotype string `json:"psychotype,omitempty"`
}

type ChatMessage struct {
	ID               string           `json:"id"`
	RoomID           string           `json:"room_id"`
	User             *User            `json:"user,omitempty"` // nil for system messages
	Content          string           `json:"content"`
	MessageType      MessageType      `json:"message_type"`
	ModerationStatus ModerationStatus `json:"moderation_status"`
	ModerationScore  *float64         `json:"moderation_score,omitempty"`
	RepliedTo        string           `json:"replied_to,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	IsOptimistic     bool             `json:"is_optimistic,omitempty"`
}

// AuthorID returns the author's user id, or "" for system messages.
func (m ChatMessage) AuthorID() string {
	if m.User == nil {
		return ""
	}
	return m.User.ID
}
