// Package channel contains platform adapters. Only Discord is implemented;
// the bot's tenant model (guild → profile) is Discord's.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"cyanbot/internal/config"
	"cyanbot/internal/domain"
)

const embedColorCyan = 0x00ffff

// Discord implements domain.Channel for Discord.
type Discord struct {
	token    string
	resolver *config.Resolver
	session  *discordgo.Session
	logger   *slog.Logger
}

// DiscordConfig configures the Discord adapter.
type DiscordConfig struct {
	Token    string
	Resolver *config.Resolver
	Logger   *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:    cfg.Token,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

// Start connects to the Discord gateway and begins relaying events onto the
// bus. Blocks until ctx is done.
func (d *Discord) Start(ctx context.Context, bus domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent
	d.session = session

	bus.OnOutbound("discord", func(msg domain.OutboundMessage) {
		if msg.Typing {
			if err := session.ChannelTyping(msg.ChannelID); err != nil {
				d.logger.Debug("typing indicator failed", "channel_id", msg.ChannelID, "err", err)
			}
			return
		}
		if msg.Content == "" {
			return
		}
		d.sendReply(msg)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.ID == s.State.User.ID {
			return
		}
		// Bot-authored and direct messages never reach the pipeline.
		if m.Author.Bot || m.GuildID == "" {
			return
		}

		d.logger.Info("discord message received",
			"guild_id", m.GuildID,
			"channel_id", m.ChannelID,
			"content_len", len(m.Content),
		)

		bus.Publish(domain.InboundMessage{
			Channel:   "discord",
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			SenderID:  m.Author.ID,
			FromBot:   m.Author.Bot,
			Content:   m.Content,
			Timestamp: time.Now(),
		})
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}

	d.logger.Info("discord bot connected", "user", session.State.User.Username)
	d.startupEmbeds()

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return session.Close()
}

func (d *Discord) Stop() error {
	if d.session != nil {
		return d.session.Close()
	}
	return nil
}

func (d *Discord) sendReply(msg domain.OutboundMessage) {
	var ref *discordgo.MessageReference
	if msg.ReplyToID != "" {
		ref = &discordgo.MessageReference{
			MessageID: msg.ReplyToID,
			ChannelID: msg.ChannelID,
			GuildID:   msg.GuildID,
		}
	}
	if _, err := d.session.ChannelMessageSendReply(msg.ChannelID, msg.Content, ref); err != nil {
		d.logger.Error("discord send failed", "channel_id", msg.ChannelID, "err", err)
	}
}

// startupEmbeds posts the boot notification to every connected guild whose
// settings name a log_channel. Failures are logged and never fatal.
func (d *Discord) startupEmbeds() {
	doc, err := d.resolver.Document()
	if err != nil {
		d.logger.Warn("startup embeds skipped", "err", err)
		return
	}

	servers, channels := doc.Stats()
	now := time.Now().UTC().Format("2006-01-02 15:04:05")

	for _, g := range d.session.State.Guilds {
		settings, ok := doc.Servers[g.ID]
		if !ok || settings.LogChannel == "" {
			continue
		}

		embed := &discordgo.MessageEmbed{
			Title:       "自動送信ログ",
			Description: fmt.Sprintf("%s-kunが起動しました。", doc.BotName),
			Color:       embedColorCyan,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "ステータス", Value: "・☑実行中", Inline: true},
				{Name: "ログ時刻", Value: now + " (UTC)", Inline: true},
				{
					Name: "統計情報",
					Value: fmt.Sprintf("フィルターされているサーバー数: %d\n許可されているチャンネル数: %d",
						servers, channels),
				},
			},
		}

		if _, err := d.session.ChannelMessageSendEmbed(string(settings.LogChannel), embed); err != nil {
			d.logger.Warn("startup embed failed", "guild_id", g.ID, "err", err)
			continue
		}
		d.logger.Info("startup embed sent", "guild_id", g.ID)
	}
}
