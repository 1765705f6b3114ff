// Package models defines the GORM models persisted in the relational store.
package models

// All lists every model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&AuthIdentity{},
		&MoodRecord{},
		&VoiceProfile{},
		&Conversation{},
		&Message{},
		&ConversationFeedback{},
		&EmailTemplate{},
		&ScheduledEmail{},
		&AgentTask{},
	}
}
