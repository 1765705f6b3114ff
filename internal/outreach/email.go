package outreach

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/models"
)

// Band picks the tone of a generated email.
type Band string

const (
	BandStruggling Band = "struggling"
	BandNeutral    Band = "neutral"
	BandThriving   Band = "thriving"
)

// FallbackSubject is used when the model's reply has no subject line.
const FallbackSubject = "당신을 위한 위로의 메시지"

const (
	subjectPrefix    = "제목:"
	recentMessages   = 20
	recentContentMax = 1000
)

// BandFor maps a mood score onto an email band.
func BandFor(moodScore float64) Band {
	switch {
	case moodScore < ComfortThreshold:
		return BandStruggling
	case moodScore > -ComfortThreshold:
		return BandThriving
	default:
		return BandNeutral
	}
}

const emailContext = `
다음 정보를 참고하세요:
- 사용자 이름: %s
- 감정 상태: %s
- 감정 추세: %s

다음은 사용자가 최근에 나눈 대화의 일부입니다:
%s
`

const emailFormat = `
응답 형식:
제목: [이메일 제목]

[이메일 본문]`

var bandPrompts = map[Band]struct{ intro, guide string }{
	BandStruggling: {
		intro: "사용자를 위한 따뜻한 위로 이메일을 작성해주세요. 사용자는 최근에 부정적인 감정을 경험하고 있습니다.",
		guide: `이메일 작성 지침:
1. 따뜻하고 공감적인 인사로 시작하세요.
2. 사용자의 감정을 인정하고 정상화하세요.
3. 긍정적인 관점이나 작은 희망의 메시지를 포함하세요.
4. 간단하고 실행 가능한 자기 관리 제안을 1-2개 포함하세요.
5. 따뜻하고 지지적인 마무리로 끝내세요.
6. 제목과 본문을 모두 작성하세요.
7. 한국어로 작성하세요.`,
	},
	BandThriving: {
		intro: "사용자를 위한 긍정적인 격려 이메일을 작성해주세요. 사용자는 최근에 긍정적인 감정을 경험하고 있습니다.",
		guide: `이메일 작성 지침:
1. 축하와 격려의 인사로 시작하세요.
2. 사용자의 긍정적인 상태를 인정하세요.
3. 이 긍정적인 모멘텀을 유지하기 위한 제안을 포함하세요.
4. 더 높은 목표를 위한 영감을 주는 메시지를 포함하세요.
5. 따뜻하고 지지적인 마무리로 끝내세요.
6. 제목과 본문을 모두 작성하세요.
7. 한국어로 작성하세요.`,
	},
	BandNeutral: {
		intro: "사용자를 위한 지지적인 이메일을 작성해주세요. 사용자의 감정 상태는 중립적이거나 약간 변동이 있습니다.",
		guide: `이메일 작성 지침:
1. 친근하고 따뜻한 인사로 시작하세요.
2. 사용자의 현재 상태를 인정하세요.
3. 마음챙김과 자기 성찰에 관한 아이디어를 공유하세요.
4. 일상에 작은 긍정적인 변화를 만들 수 있는 제안을 포함하세요.
5. 따뜻하고 지지적인 마무리로 끝내세요.
6. 제목과 본문을 모두 작성하세요.
7. 한국어로 작성하세요.`,
	},
}

// EmailPrompt builds the writer instruction for one user.
func EmailPrompt(band Band, userName, mood, trend, recent string) string {
	p := bandPrompts[band]
	return p.intro + "\n" + fmt.Sprintf(emailContext, userName, mood, trend, recent) + "\n" + p.guide + "\n" + emailFormat
}

// Email is a generated subject and body.
type Email struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ParseEmail splits "제목: subject\n\nbody". A reply without that shape is
// kept whole as the body under FallbackSubject.
func ParseEmail(reply string) Email {
	lines := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")
	subject := strings.TrimSpace(strings.Replace(lines[0], subjectPrefix, "", 1))
	if subject == "" || len(lines) < 3 {
		return Email{Subject: FallbackSubject, Body: reply}
	}
	return Email{Subject: subject, Body: strings.Join(lines[2:], "\n")}
}

// ComposeEmail asks the model for an email matched to the analysis band,
// grounded on the user's latest messages.
func (s *Service) ComposeEmail(ctx context.Context, user *models.User, a *Analysis) (Email, error) {
	var recent []string
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ? AND messages.message_type = ?", user.ID, models.MessageTypeUser).
		Order("messages.created_at DESC").Order("messages.id DESC").
		Limit(recentMessages).
		Pluck("messages.content", &recent).Error; err != nil {
		return Email{}, fmt.Errorf("failed to load recent messages: %w", err)
	}

	content := []rune(strings.Join(recent, "\n"))
	if len(content) > recentContentMax {
		content = content[:recentContentMax]
	}

	prompt := EmailPrompt(BandFor(a.MoodScore), user.DisplayName(), a.MostFrequentMood, a.Trend, string(content))
	reply, err := s.llm.Complete(ctx, []agent.Turn{{Role: agent.RoleUser, Content: prompt}})
	if err != nil {
		return Email{}, fmt.Errorf("failed to generate email: %w", err)
	}
	return ParseEmail(reply), nil
}
