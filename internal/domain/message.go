package domain

import "time"

// Turn roles. History only ever holds user and assistant turns; the system
// turn is synthesized per request from the current config.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message unit in a conversation sequence.
// Immutable once created.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InboundMessage is one message event from the chat platform. It lives only
// for the pipeline run that handles it.
type InboundMessage struct {
	Channel   string // adapter name, e.g. "discord"
	GuildID   string // tenant id; empty for direct messages
	ChannelID string
	MessageID string
	SenderID  string
	FromBot   bool
	Content   string
	Timestamp time.Time
}

// OutboundMessage is a reply (or a typing signal) headed back to the
// originating channel.
type OutboundMessage struct {
	Channel   string
	ChannelID string
	ReplyToID string // message to reply to; empty = plain send
	GuildID   string
	Content   string
	Typing    bool // typing indicator only, no content
}
