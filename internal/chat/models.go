package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	UserID    string    `gorm:"type:varchar(255);index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(128);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message is one persisted transcript record. UserID is the author identity:
// the owner of the session for both roles.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(26);not null;index:idx_chat_msg_session_id;index:uniq_chat_msg_idempo,unique,priority:1" json:"session_id"`
	UserID         string    `gorm:"type:varchar(255);not null;index" json:"author"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IdempotencyKey *string   `gorm:"type:varchar(128);index:uniq_chat_msg_idempo,unique,priority:2" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// DisplayMessage is the rendering form of a message.
type DisplayMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m Message) Display() DisplayMessage {
	return DisplayMessage{Role: m.Role, Content: m.Content}
}
