// Package discord implements the Discord messaging channel using discordgo.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/sagebridge/sagebridge/internal/config"
	"github.com/sagebridge/sagebridge/internal/domain"
	"github.com/sagebridge/sagebridge/internal/logging"
)

// maxMessageLen is Discord's per-message character limit.
const maxMessageLen = 2000

// Channel implements domain.Channel for Discord.
type Channel struct {
	cfg     config.DiscordConfig
	session *discordgo.Session
	log     *logging.Logger

	mu      sync.RWMutex
	handler func(msg domain.InboundMessage)
	running bool
	lastErr string

	allowed map[string]bool
}

// New creates a Discord channel from configuration.
func New(cfg config.DiscordConfig, log *logging.Logger) *Channel {
	allowed := make(map[string]bool, len(cfg.AllowedChannels))
	for _, id := range cfg.AllowedChannels {
		allowed[id] = true
	}
	return &Channel{
		cfg:     cfg,
		log:     log.Sub("discord"),
		allowed: allowed,
	}
}

func (c *Channel) ID() string { return "discord" }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Status returns the current runtime status.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "discord",
		Connected: c.session != nil && c.running,
		Running:   c.running,
		LastError: c.lastErr,
	}
}

// Start opens the Discord gateway connection and begins processing
// messages. It returns once the connection is up; discordgo handles
// reconnects internally.
func (c *Channel) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + c.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(c.onReady)
	session.AddHandler(c.onMessageCreate)

	if err := session.Open(); err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		return fmt.Errorf("discord connect: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.running = true
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().Int("allowedChannels", len(c.allowed)).Msg("connected to Discord")
	return nil
}

// Stop closes the gateway connection.
func (c *Channel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.log.Info().Msg("disconnecting from Discord")
		if err := c.session.Close(); err != nil {
			return fmt.Errorf("discord close: %w", err)
		}
	}
	c.running = false
	return nil
}

// Send delivers a message to a Discord channel, splitting bodies that
// exceed the platform limit and attaching media as files.
func (c *Channel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("discord: not connected")
	}
	if msg.To == "" {
		return fmt.Errorf("discord: no target specified")
	}

	chunks := splitMessage(msg.Body, maxMessageLen)

	// Attach files to the last chunk so they arrive after the text.
	for i, chunk := range chunks {
		send := &discordgo.MessageSend{Content: chunk}
		if i == len(chunks)-1 {
			for _, att := range msg.Media {
				send.Files = append(send.Files, &discordgo.File{
					Name:        att.Filename,
					ContentType: att.MimeType,
					Reader:      bytes.NewReader(att.Data),
				})
			}
		}
		if _, err := session.ChannelMessageSendComplex(msg.To, send); err != nil {
			return fmt.Errorf("discord send to %s: %w", msg.To, err)
		}
	}

	c.log.Debug().
		Str("to", msg.To).
		Int("chunks", len(chunks)).
		Int("files", len(msg.Media)).
		Msg("sent Discord message")
	return nil
}

func (c *Channel) onReady(s *discordgo.Session, r *discordgo.Ready) {
	c.log.Info().
		Str("username", r.User.Username).
		Int("guilds", len(r.Guilds)).
		Msg("Discord session ready")
}

func (c *Channel) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if m.Author.Bot {
		return
	}
	if len(c.allowed) > 0 && !c.allowed[m.ChannelID] {
		return
	}

	chatType := domain.ChatTypeGroup
	if m.GuildID == "" {
		chatType = domain.ChatTypeDM
	}

	msg := domain.InboundMessage{
		ID:        m.ID,
		ChannelID: "discord",
		From:      m.Author.ID,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		ChatType:  chatType,
		Body:      m.Content,
		Timestamp: time.Now(),
	}
	for _, att := range m.Attachments {
		msg.Media = append(msg.Media, domain.Attachment{
			ID:       att.ID,
			URL:      att.URL,
			MimeType: att.ContentType,
			Filename: att.Filename,
			Size:     int64(att.Size),
		})
	}

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// splitMessage breaks a body into chunks under maxLen, preferring to cut
// at line boundaries.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > maxLen {
		cut := maxLen
		for i := maxLen; i > 0; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
