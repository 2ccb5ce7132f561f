// Package pipeline orchestrates one inbound message end to end: resolve the
// server profile, decide engagement, assemble the prompt, invoke the
// completion backend, update history, and hand the reply to the outbound
// sender.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cyanbot/internal/config"
	"cyanbot/internal/convo"
	"cyanbot/internal/domain"
	"cyanbot/internal/engage"
	"cyanbot/internal/metrics"
)

const (
	// MaxReplyLen is the platform's hard message length limit, in characters.
	MaxReplyLen = 2000

	defaultConcurrency = 3

	// Fixed user-visible failure reply. Every run-level error collapses to
	// this one message; diagnostics go to the log.
	apologyReply = "エラーが出てるみたい！\nあどみんさんに相談してみて！"
)

// ProfileResolver resolves the effective server profile for a tenant.
type ProfileResolver interface {
	Resolve(tenantID string) (config.TenantProfile, error)
}

// ExchangeRecorder persists engaged exchanges for operators. Optional;
// recording failures never affect the reply.
type ExchangeRecorder interface {
	Record(ctx context.Context, ex domain.Exchange) error
}

// Pipeline consumes inbound messages from the bus and produces replies.
type Pipeline struct {
	resolver  ProfileResolver
	store     *convo.Store
	assembler *convo.Assembler
	completer domain.Completer
	bus       domain.MessageBus
	recorder  ExchangeRecorder
	logger    *slog.Logger

	concurrency int

	// Per-channel run locks: at most one run executes per channel, so two
	// quick messages in one channel cannot interleave at the backend call.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Config holds the pipeline's dependencies.
type Config struct {
	Resolver    ProfileResolver
	Store       *convo.Store
	Assembler   *convo.Assembler
	Completer   domain.Completer
	Bus         domain.MessageBus
	Recorder    ExchangeRecorder // optional
	Logger      *slog.Logger
	Concurrency int // max parallel runs across channels (default 3)
}

func New(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Pipeline{
		resolver:    cfg.Resolver,
		store:       cfg.Store,
		assembler:   cfg.Assembler,
		completer:   cfg.Completer,
		bus:         cfg.Bus,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Run consumes inbound messages until ctx is done or the bus closes.
func (p *Pipeline) Run(ctx context.Context) {
	p.logger.Info("pipeline started", "concurrency", p.concurrency)

	sem := make(chan struct{}, p.concurrency)
	inbound := p.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				p.logger.Info("inbound channel closed, pipeline stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				p.Handle(ctx, m)
			}(msg)
		}
	}
}

// Handle runs the full pipeline for one message. Bot-authored and non-guild
// messages are dropped without entering the pipeline proper.
func (p *Pipeline) Handle(ctx context.Context, msg domain.InboundMessage) {
	if msg.FromBot || msg.GuildID == "" {
		return
	}
	metrics.MessagesTotal.Inc()

	unlock := p.lockChannel(msg.ChannelID)
	defer unlock()

	profile, err := p.resolver.Resolve(msg.GuildID)
	if err != nil {
		p.fail(msg, fmt.Errorf("resolve profile: %w", err))
		return
	}

	if !engage.ShouldEngage(profile, msg.ChannelID, msg.Content) {
		metrics.IgnoredTotal.Inc()
		p.logger.Debug("message ignored",
			"guild_id", msg.GuildID,
			"channel_id", msg.ChannelID,
		)
		return
	}
	metrics.EngagedTotal.Inc()

	p.bus.SendOutbound(domain.OutboundMessage{
		Channel:   msg.Channel,
		ChannelID: msg.ChannelID,
		Typing:    true,
	})

	// The user turn goes into history before the backend call so a later run
	// for the same channel observes it.
	p.store.Append(msg.ChannelID, domain.Turn{Role: domain.RoleUser, Content: msg.Content})

	turns, err := p.assembler.Assemble(profile, msg.ChannelID)
	if err != nil {
		p.fail(msg, fmt.Errorf("assemble prompt: %w", err))
		return
	}

	start := time.Now()
	reply, err := p.completer.Complete(ctx, turns)
	latency := time.Since(start)
	metrics.CompletionLatency.Observe(latency.Seconds())
	if err != nil {
		// The user turn stays in history; it is bounded by the FIFO cap.
		p.fail(msg, fmt.Errorf("completion backend: %w", err))
		return
	}

	p.store.Append(msg.ChannelID, domain.Turn{Role: domain.RoleAssistant, Content: reply})

	p.send(msg, Truncate(reply, MaxReplyLen))
	metrics.RepliesTotal.Inc()

	p.logger.Info("reply sent",
		"guild_id", msg.GuildID,
		"channel_id", msg.ChannelID,
		"latency_ms", latency.Milliseconds(),
		"reply_len", len(reply),
	)

	if p.recorder != nil {
		ex := domain.Exchange{
			GuildID:   msg.GuildID,
			ChannelID: msg.ChannelID,
			SenderID:  msg.SenderID,
			UserText:  msg.Content,
			ReplyText: reply,
			Model:     p.completer.Model(),
			LatencyMs: latency.Milliseconds(),
		}
		if err := p.recorder.Record(ctx, ex); err != nil {
			p.logger.Warn("archive write failed", "err", err)
		}
	}
}

// fail logs the full diagnostic detail and sends the fixed apology. No
// retries, and nothing propagates past the run.
func (p *Pipeline) fail(msg domain.InboundMessage, err error) {
	metrics.ErrorsTotal.Inc()
	p.logger.Error("pipeline run failed",
		"guild_id", msg.GuildID,
		"channel_id", msg.ChannelID,
		"err", err,
	)
	p.send(msg, apologyReply)
}

func (p *Pipeline) send(msg domain.InboundMessage, content string) {
	p.bus.SendOutbound(domain.OutboundMessage{
		Channel:   msg.Channel,
		ChannelID: msg.ChannelID,
		ReplyToID: msg.MessageID,
		GuildID:   msg.GuildID,
		Content:   content,
	})
}

// lockChannel acquires the channel's run lock and returns its release func.
func (p *Pipeline) lockChannel(channelID string) func() {
	p.mu.Lock()
	l, ok := p.locks[channelID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[channelID] = l
	}
	p.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Truncate cuts s to at most max characters. Rune-based: Discord counts
// characters, and the persona text is mostly non-ASCII.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
