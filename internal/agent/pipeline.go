package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Stage names, in execution order.
const (
	StageSentiment = "analyze_sentiment"
	StageCrisis    = "check_crisis"
	StageResponse  = "generate_response"
)

// Result is the pipeline's terminal output.
type Result struct {
	Content        string   `json:"content"`
	SentimentScore float64  `json:"sentiment_score"`
	HasCrisis      bool     `json:"has_crisis"`
	Template       Template `json:"-"`
}

// Pipeline runs sentiment → crisis → response, one completion each.
// It keeps no state between runs; callers pass the prior turns every time.
type Pipeline struct {
	llm Completer
}

// NewPipeline returns a pipeline calling llm.
func NewPipeline(llm Completer) *Pipeline {
	return &Pipeline{llm: llm}
}

// Run executes the three stages over message. Stages one and two both see the
// raw message. A failed sentiment reply degrades to neutral; a failed
// completion call aborts the run and is returned to the caller.
func (p *Pipeline) Run(ctx context.Context, message string, history []Turn) (*Result, error) {
	sentimentReply, err := p.llm.Complete(ctx, []Turn{
		{Role: RoleUser, Content: fmt.Sprintf(sentimentPrompt, message)},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageSentiment, err)
	}
	score := RatingToScore(ParseRating(sentimentReply))

	crisisReply, err := p.llm.Complete(ctx, []Turn{
		{Role: RoleUser, Content: fmt.Sprintf(crisisPrompt, message)},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageCrisis, err)
	}
	crisis := DetectCrisis(crisisReply)

	tmpl := SelectTemplate(score, crisis)
	content, err := p.llm.Complete(ctx, ResponseTurns(tmpl, message, history))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageResponse, err)
	}

	return &Result{
		Content:        content,
		SentimentScore: score,
		HasCrisis:      crisis,
		Template:       tmpl,
	}, nil
}

var ratingPattern = regexp.MustCompile(`[1-5]`)

// ParseRating extracts the first digit 1-5 from reply, defaulting to 3.
func ParseRating(reply string) int {
	m := ratingPattern.FindString(reply)
	if m == "" {
		return 3
	}
	return int(m[0] - '0')
}

// RatingToScore maps a 1-5 rating onto [-1, 1].
func RatingToScore(rating int) float64 {
	return float64(rating-3) / 2
}

// DetectCrisis reports whether reply carries the affirmative crisis marker.
func DetectCrisis(reply string) bool {
	return strings.Contains(strings.ToUpper(reply), CrisisMarker)
}

// SelectTemplate picks the response instructions. A crisis overrides every
// sentiment band.
func SelectTemplate(score float64, crisis bool) Template {
	switch {
	case crisis:
		return TemplateCrisis
	case score < -0.5:
		return TemplateVeryNegative
	case score < 0:
		return TemplateNegative
	case score > 0.5:
		return TemplateVeryPositive
	case score > 0:
		return TemplatePositive
	default:
		return TemplateNeutral
	}
}

// ResponseTurns builds the final-stage prompt: system instructions, prior
// turns, then the raw message wrapped in the selected template.
func ResponseTurns(tmpl Template, message string, history []Turn) []Turn {
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: systemPrompt})
	for _, h := range history {
		if h.Role != RoleUser && h.Role != RoleAssistant {
			continue
		}
		turns = append(turns, h)
	}
	turns = append(turns, Turn{Role: RoleUser, Content: fmt.Sprintf(responseTemplates[tmpl], message)})
	return turns
}
