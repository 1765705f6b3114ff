package models

import (
	"time"
)

// Message roles.
const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
	MessageTypeSystem    = "system"
)

// Message content kinds.
const (
	ContentTypeText  = "text"
	ContentTypeVoice = "voice"
)

// Conversation is a chat session owned by one user. OverallSentiment stays nil
// until the first scored message arrives.
type Conversation struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `gorm:"index" json:"updated_at"`
	UserID           uint      `gorm:"not null;index" json:"-"`
	User             User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Title            string    `gorm:"size:200;not null;default:''" json:"title"`
	IsActive         bool      `gorm:"not null" json:"is_active"`
	OverallSentiment *float64  `json:"overall_sentiment"`
	TotalMessages    int       `gorm:"not null;default:0" json:"total_messages"`

	Messages []Message              `gorm:"constraint:OnDelete:CASCADE;" json:"messages,omitempty"`
	Feedback []ConversationFeedback `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// Message is one turn of a conversation. Only the voice attachment fields are
// written after creation.
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
	ConversationID uint      `gorm:"not null;index" json:"conversation"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	ContentType    string    `gorm:"size:10;not null;default:'text'" json:"content_type"`
	MessageType    string    `gorm:"size:10;not null" json:"message_type"`
	SentimentScore *float64  `json:"sentiment_score"`
	VoiceFile      string    `gorm:"not null;default:''" json:"voice_file,omitempty"`
	VoiceDuration  *float64  `json:"voice_duration,omitempty"`
	VoiceID        string    `gorm:"size:50;not null;default:''" json:"voice_id"`
}

// ConversationFeedback is a user's 1-5 rating of a conversation.
type ConversationFeedback struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	ConversationID uint      `gorm:"not null;index" json:"conversation"`
	Rating         int       `gorm:"not null" json:"rating"`
	Comment        string    `gorm:"type:text;not null;default:''" json:"comment"`
}

// VoiceProfile is a catalog entry describing a synthesis voice.
type VoiceProfile struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	VoiceID     string `gorm:"size:50;uniqueIndex;not null" json:"voice_id"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
	Category    string `gorm:"size:20;not null" json:"category"`
	IsPremium   bool   `gorm:"not null" json:"is_premium"`
	Gender      string `gorm:"size:10;not null;default:''" json:"gender"`
	AgeRange    string `gorm:"size:20;not null;default:''" json:"age_range"`
	Accent      string `gorm:"size:50;not null;default:''" json:"accent"`
	SampleAudio string `gorm:"not null;default:''" json:"sample_audio,omitempty"`
}

// TableName pins the plural, which the inflector leaves ambiguous for "feedback".
func (ConversationFeedback) TableName() string {
	return "conversation_feedbacks"
}
