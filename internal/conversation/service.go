// Package conversation owns conversations and their messages: the rolling
// sentiment aggregate, bounded history, and the HTTP reply flow.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned for conversations the caller does not own or that do not exist.
var ErrNotFound = errors.New("conversation not found")

// DefaultTitle names conversations created without a title.
const DefaultTitle = "New Conversation"

// WelcomeMessage opens every new conversation.
const WelcomeMessage = "안녕하세요! 오늘 어떻게 지내고 계신가요? 무엇을 도와드릴까요?"

// DefaultHistoryWindow is the number of prior messages handed to the agent.
const DefaultHistoryWindow = 20

// Service persists conversations and messages.
type Service struct {
	db *gorm.DB
}

// NewService returns a service over db.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Create starts a conversation for userID and appends the welcome message.
func (s *Service) Create(ctx context.Context, userID uint, title string) (*models.Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}

	conv := models.Conversation{
		UserID:   userID,
		Title:    title,
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	welcome := models.Message{
		Content:     WelcomeMessage,
		ContentType: models.ContentTypeText,
		MessageType: models.MessageTypeAssistant,
		VoiceID:     "default",
	}
	if err := s.Append(ctx, conv.ID, &welcome); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, conv.ID)
}

// Get returns the conversation if userID owns it.
func (s *Service) Get(ctx context.Context, userID, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

// List returns the user's conversations, most recently updated first.
func (s *Service) List(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

// Messages returns every message of a conversation in chronological order.
func (s *Service) Messages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// Last returns the newest message of a conversation, or nil when it has none.
func (s *Service) Last(ctx context.Context, conversationID uint) (*models.Message, error) {
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").
		Limit(1).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to load last message: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// Append stores msg in the conversation and updates the aggregates: the
// message counter always grows by one; a scored message folds into
// overall_sentiment as a running mean over the post-increment counter.
// Unscored messages therefore still widen the denominator used by later
// scored ones.
func (s *Service) Append(ctx context.Context, conversationID uint, msg *models.Message) error {
	msg.ConversationID = conversationID
	if msg.ContentType == "" {
		msg.ContentType = models.ContentTypeText
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The counter update comes first so the row stays locked until commit.
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Updates(map[string]interface{}{
				"total_messages": gorm.Expr("total_messages + 1"),
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update conversation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		if msg.SentimentScore == nil {
			return nil
		}

		var conv models.Conversation
		if err := tx.Select("id", "overall_sentiment", "total_messages").First(&conv, conversationID).Error; err != nil {
			return fmt.Errorf("failed to reload conversation: %w", err)
		}

		mean := RunningMean(conv.OverallSentiment, *msg.SentimentScore, conv.TotalMessages)
		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			UpdateColumn("overall_sentiment", mean).Error; err != nil {
			return fmt.Errorf("failed to update sentiment: %w", err)
		}
		return nil
	})
}

// RunningMean folds score into prev where n is the message count including
// the new message. With no previous mean the score itself is the mean.
func RunningMean(prev *float64, score float64, n int) float64 {
	if prev == nil || n <= 1 {
		return score
	}
	return (*prev*float64(n-1) + score) / float64(n)
}

// History returns the last limit messages, oldest first, as agent turns.
func (s *Service) History(ctx context.Context, conversationID uint, limit int) ([]agent.Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}

	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	turns := make([]agent.Turn, len(msgs))
	for i, m := range msgs {
		turns[len(msgs)-1-i] = agent.Turn{Role: m.MessageType, Content: m.Content}
	}
	return turns, nil
}

// AttachVoice backfills the audio reference of an existing message.
func (s *Service) AttachVoice(ctx context.Context, msg *models.Message, file string, duration float64) error {
	msg.VoiceFile = file
	msg.VoiceDuration = &duration
	if err := s.db.WithContext(ctx).Model(msg).Updates(map[string]interface{}{
		"voice_file":     file,
		"voice_duration": duration,
	}).Error; err != nil {
		return fmt.Errorf("failed to attach voice: %w", err)
	}
	return nil
}

// AddFeedback records a 1-5 rating for a conversation the user owns.
func (s *Service) AddFeedback(ctx context.Context, userID, conversationID uint, rating int, comment string) (*models.ConversationFeedback, error) {
	if _, err := s.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	fb := models.ConversationFeedback{
		ConversationID: conversationID,
		Rating:         rating,
		Comment:        comment,
	}
	if err := s.db.WithContext(ctx).Create(&fb).Error; err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	return &fb, nil
}
