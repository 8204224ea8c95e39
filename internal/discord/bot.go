// Package discord provides the Discord layer for Stagehand. It owns the
// discordgo.Session lifecycle, feeds channel messages into the transcript,
// routes slash command interactions to registered handlers, and checks
// operator permissions.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/stagehand/internal/config"
	"github.com/MrWong99/stagehand/internal/stage"
	"github.com/MrWong99/stagehand/internal/transcript"
)

// refreshTimeout bounds the evaluation cycle triggered by an incoming
// message.
const refreshTimeout = 10 * time.Second

// StageController is the subset of the stage director the bot drives.
type StageController interface {
	Refresh(ctx context.Context, trigger string)
}

// Bot owns the Discord gateway connection. It appends messages from the
// watched channel to the transcript ring and routes interactions to
// registered command handlers.
type Bot struct {
	cfg    config.DiscordConfig
	ring   *transcript.Ring
	stage  StageController
	router *CommandRouter
	perms  *PermissionChecker

	mu       sync.Mutex
	session  *discordgo.Session
	commands []*discordgo.ApplicationCommand
	seen     map[string]bool // lowercase speaker names already in the master list
	order    []string        // priority-ordered master list, user first

	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the gateway
// handlers. The message-content intent must be enabled for the bot account
// or every transcript entry arrives empty.
func New(_ context.Context, cfg config.DiscordConfig, ring *transcript.Ring, ctrl StageController) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		cfg:    cfg,
		ring:   ring,
		stage:  ctrl,
		router: NewCommandRouter(),
		perms:  NewPermissionChecker(cfg.UserID),
		seen:   make(map[string]bool),
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(b.handleMessage)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	b.session = session

	return b, nil
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Permissions returns the permission checker.
func (b *Bot) Permissions() *PermissionChecker {
	return b.perms
}

// Backfill seeds the transcript ring with the most recent messages from the
// watched channel, oldest first, up to the configured history limit. Call it
// once after New and before the stage director starts so the initial roster
// reflects the conversation so far.
func (b *Bot) Backfill(ctx context.Context) error {
	if b.cfg.ChannelID == "" || b.cfg.HistoryLimit <= 0 {
		return nil
	}

	msgs, err := b.session.ChannelMessages(b.cfg.ChannelID, b.cfg.HistoryLimit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: fetch channel history: %w", err)
	}

	// ChannelMessages returns newest first.
	slices.Reverse(msgs)
	for _, m := range msgs {
		if m.Author == nil || m.Author.Bot {
			continue
		}
		b.record(transcript.Message{
			Text:    m.Content,
			Speaker: displayName(m.Member, m.Author),
			IsUser:  m.Author.ID == b.cfg.UserID,
			Sent:    m.Timestamp,
		})
	}

	slog.Info("discord history backfilled", "channel", b.cfg.ChannelID, "messages", len(msgs))
	return nil
}

// Run registers slash commands with the Discord API and blocks until ctx is
// cancelled.
func (b *Bot) Run(ctx context.Context) error {
	appID := b.session.State.User.ID

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered))
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.cfg.GuildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}

		slog.Info("discord bot closed")
	})
	return closeErr
}

// handleMessage feeds a gateway message into the transcript and triggers an
// evaluation cycle. Messages from other channels and from bots (including
// this one) are ignored.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if b.cfg.ChannelID != "" && m.ChannelID != b.cfg.ChannelID {
		return
	}

	b.record(transcript.Message{
		Text:    m.Content,
		Speaker: displayName(m.Member, m.Author),
		IsUser:  m.Author.ID == b.cfg.UserID,
		Sent:    m.Timestamp,
	})

	if b.stage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	b.stage.Refresh(ctx, stage.TriggerMessage)
}

// record appends msg to the ring and keeps the master participant list
// current. New speakers join at the end; the primary user always sits at the
// front so they win ordering tie-breaks.
func (b *Bot) record(msg transcript.Message) {
	b.ring.Append(msg)

	if msg.Speaker == "" {
		return
	}

	b.mu.Lock()
	key := strings.ToLower(msg.Speaker)
	if !b.seen[key] {
		b.seen[key] = true
		if msg.IsUser {
			b.order = append([]string{msg.Speaker}, b.order...)
		} else {
			b.order = append(b.order, msg.Speaker)
		}
		b.ring.SetParticipants(b.order)
	}
	b.mu.Unlock()
}

// displayName picks the best human-readable name for a message author:
// server nickname, then global display name, then the account name.
func displayName(member *discordgo.Member, author *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if author.GlobalName != "" {
		return author.GlobalName
	}
	return author.Username
}
