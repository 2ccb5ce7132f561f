package domain

import "time"

// Exchange is one engaged question/answer pair, recorded for operators.
type Exchange struct {
	ID        int64
	GuildID   string
	ChannelID string
	SenderID  string
	UserText  string
	ReplyText string
	Model     string
	LatencyMs int64
	CreatedAt time.Time
}
