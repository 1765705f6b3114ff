// Package outreach watches recent moods and message sentiment, writes comfort
// emails for users who seem to be struggling and delivers them on schedule.
package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/mindfulchat/mindful-chat/internal/models"
)

// AnalysisWindow is how far back Analyze looks.
const AnalysisWindow = 14 * 24 * time.Hour

// ComfortThreshold is the score below which a user is considered struggling.
const ComfortThreshold = -0.3

// Trend values.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
	TrendUnknown   = "unknown"
)

const trendDelta = 0.2

var moodWeights = map[string]float64{
	models.MoodVeryGood: 1.0,
	models.MoodGood:     0.5,
	models.MoodNeutral:  0,
	models.MoodBad:      -0.5,
	models.MoodVeryBad:  -1.0,
}

// Analysis summarizes a user's last two weeks.
type Analysis struct {
	MoodScore        float64        `json:"mood_score"`
	SentimentScore   float64        `json:"sentiment_score"`
	MostFrequentMood string         `json:"most_frequent_mood"`
	MoodCounts       map[string]int `json:"mood_counts"`
	TotalRecords     int            `json:"total_records"`
	Trend            string         `json:"trend"`
	NeedsComfort     bool           `json:"needs_comfort"`
}

// MoodScore is the weighted mean of counts, 0 when there are none.
func MoodScore(counts map[string]int) float64 {
	var sum float64
	total := 0
	for mood, n := range counts {
		sum += moodWeights[mood] * float64(n)
		total += n
	}
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}

// Trend compares the mean weight of the three oldest moods against the three
// newest. moods must be ordered oldest first.
func Trend(moods []string) string {
	if len(moods) < 3 {
		return TrendUnknown
	}
	oldAvg := meanWeight(moods[:3])
	newAvg := meanWeight(moods[len(moods)-3:])
	switch {
	case newAvg-oldAvg > trendDelta:
		return TrendImproving
	case oldAvg-newAvg > trendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func meanWeight(moods []string) float64 {
	var sum float64
	for _, m := range moods {
		sum += moodWeights[m]
	}
	return sum / float64(len(moods))
}

// mostFrequent returns the mood with the highest count, ties going to the
// worse mood. No records at all reads as neutral.
func mostFrequent(counts map[string]int) string {
	best, bestN := models.MoodNeutral, 0
	for _, m := range models.Moods {
		if counts[m] > bestN {
			best, bestN = m, counts[m]
		}
	}
	return best
}

// Analyze scores the user's mood records and scored messages from the
// trailing window.
func (s *Service) Analyze(ctx context.Context, userID uint) (*Analysis, error) {
	since := s.now().Add(-AnalysisWindow)

	var recs []models.MoodRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND recorded_at >= ?", userID, since).
		Order("recorded_at ASC").Order("id ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load mood records: %w", err)
	}

	var scores []float64
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.created_at >= ? AND messages.sentiment_score IS NOT NULL", userID, since).
		Pluck("messages.sentiment_score", &scores).Error; err != nil {
		return nil, fmt.Errorf("failed to load message sentiment: %w", err)
	}

	counts := make(map[string]int, len(models.Moods))
	for _, m := range models.Moods {
		counts[m] = 0
	}
	moods := make([]string, 0, len(recs))
	for _, r := range recs {
		counts[r.Mood]++
		moods = append(moods, r.Mood)
	}

	a := &Analysis{
		MoodScore:        MoodScore(counts),
		SentimentScore:   mean(scores),
		MostFrequentMood: mostFrequent(counts),
		MoodCounts:       counts,
		TotalRecords:     len(recs),
		Trend:            Trend(moods),
	}
	a.NeedsComfort = a.MoodScore < ComfortThreshold || a.SentimentScore < ComfortThreshold
	return a, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
