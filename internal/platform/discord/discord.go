// Package discord implements the platform actions on top of a Discord bot.
// A chat is a guild; message deletion resolves the channel from recently seen
// messages and falls back to the message store.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/platform"
	"github.com/robalyx/chatguard/pkg/utils"
	"go.uber.org/zap"
)

// Discord JSON error codes mapped to platform errors.
const (
	codeUnknownChannel     = 10003
	codeUnknownMessage     = 10008
	codeUnknownBan         = 10026
	codeMissingAccess      = 50001
	codeCannotSendMessages = 50007
	codeMissingPermissions = 50013
)

// Direct message pacing.
const (
	dmInterval = 250 * time.Millisecond
	dmJitter   = 75 * time.Millisecond
)

// channelCacheTTL bounds how long a message can be deleted after it was seen.
const channelCacheTTL = 24 * time.Hour

// MessageLocator looks up stored messages to find their channel.
type MessageLocator interface {
	GetMessage(ctx context.Context, chatID, messageID int64) (*types.Message, error)
}

// MessageHandler receives inbound messages. editVersion is 0 for new messages.
type MessageHandler func(ctx context.Context, message *types.Message, editVersion int)

// Client is a Discord-backed implementation of platform.Actions.
type Client struct {
	client   bot.Client
	channels *utils.TTLMap[int64, int64] // messageID -> channelID
	edits    *utils.TTLMap[int64, int]   // messageID -> edit version
	messages MessageLocator
	dms      *Limiter
	retry    utils.RetryOptions
	logger   *zap.Logger
}

// New creates a Discord client. Inbound guild messages are passed to handler.
// messages is consulted for channels of messages not seen by this process.
func New(token string, messages MessageLocator, handler MessageHandler, logger *zap.Logger) (*Client, error) {
	c := &Client{
		channels: utils.NewTTLMap[int64, int64](channelCacheTTL),
		edits:    utils.NewTTLMap[int64, int](channelCacheTTL),
		messages: messages,
		dms:      NewLimiter(dmInterval, dmJitter),
		retry:    utils.GetPlatformRetryOptions(),
		logger:   logger.Named("discord"),
	}

	client, err := disgo.New(token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildMessageCreate: func(event *events.GuildMessageCreate) {
				c.dispatch(event.GuildID, event.Message, handler, false)
			},
			OnGuildMessageUpdate: func(event *events.GuildMessageUpdate) {
				c.dispatch(event.GuildID, event.Message, handler, true)
			},
		}),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	c.client = client

	return c, nil
}

// Open connects to the gateway.
func (c *Client) Open(ctx context.Context) error {
	c.logger.Info("Opening gateway")
	return c.client.OpenGateway(ctx)
}

// Close disconnects from the gateway and releases caches.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close(context.Background())
	}

	c.channels.Close()
	c.edits.Close()
}

// BanUser bans a user from a guild.
func (c *Client) BanUser(ctx context.Context, chatID, userID int64, reason string) error {
	err := c.withRetry(ctx, func() error {
		return c.client.Rest().AddBan(
			snowflake.ID(chatID), snowflake.ID(userID), 0,
			rest.WithCtx(ctx), rest.WithReason(reason),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to ban user %d from guild %d: %w", userID, chatID, err)
	}

	return nil
}

// UnbanUser lifts a user's guild ban. Unknown bans are treated as lifted.
func (c *Client) UnbanUser(ctx context.Context, chatID, userID int64) error {
	err := c.withRetry(ctx, func() error {
		return c.client.Rest().DeleteBan(snowflake.ID(chatID), snowflake.ID(userID), rest.WithCtx(ctx))
	})
	if err != nil && !hasCode(err, codeUnknownBan) {
		return fmt.Errorf("failed to unban user %d from guild %d: %w", userID, chatID, err)
	}

	return nil
}

// DeleteMessage deletes a message seen on the gateway or kept in the message store.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	channelID, err := c.resolveChannel(ctx, chatID, messageID)
	if err != nil {
		return err
	}

	err = c.withRetry(ctx, func() error {
		return c.client.Rest().DeleteMessage(snowflake.ID(channelID), snowflake.ID(messageID), rest.WithCtx(ctx))
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", messageID, err)
	}

	c.channels.Delete(messageID)

	return nil
}

// SendDirectMessage sends a private message to a user.
func (c *Client) SendDirectMessage(ctx context.Context, userID int64, text string) error {
	if err := c.dms.Wait(ctx); err != nil {
		return err
	}

	var channel *discord.DMChannel

	err := c.withRetry(ctx, func() error {
		var err error
		channel, err = c.client.Rest().CreateDMChannel(snowflake.ID(userID), rest.WithCtx(ctx))

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to open DM channel with user %d: %w", userID, err)
	}

	message := discord.NewMessageCreateBuilder().
		SetContent(utils.TruncateString(text, 2000)).
		Build()

	err = c.withRetry(ctx, func() error {
		_, err := c.client.Rest().CreateMessage(channel.ID(), message, rest.WithCtx(ctx))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send DM to user %d: %w", userID, err)
	}

	return nil
}

// ListManagedChats returns the IDs of all guilds the bot is a member of.
func (c *Client) ListManagedChats(ctx context.Context) ([]int64, error) {
	var (
		chatIDs []int64
		after   snowflake.ID
	)

	for {
		var guilds []discord.OAuth2Guild

		err := c.withRetry(ctx, func() error {
			var err error
			guilds, err = c.client.Rest().GetCurrentUserGuilds(0, after, 200, false, rest.WithCtx(ctx))

			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list guilds: %w", err)
		}

		for _, guild := range guilds {
			chatIDs = append(chatIDs, int64(guild.ID))
			after = guild.ID
		}

		if len(guilds) < 200 {
			return chatIDs, nil
		}
	}
}

// resolveChannel finds the channel of a message, first in the gateway cache
// and then in the message store.
func (c *Client) resolveChannel(ctx context.Context, chatID, messageID int64) (int64, error) {
	if channelID, ok := c.channels.Get(messageID); ok {
		return channelID, nil
	}

	if c.messages == nil {
		return 0, fmt.Errorf("%w: message %d in guild %d was not seen",
			platform.ErrMessageUnlocatable, messageID, chatID)
	}

	message, err := c.messages.GetMessage(ctx, chatID, messageID)
	if err != nil {
		return 0, fmt.Errorf("%w: message %d in guild %d: %w",
			platform.ErrMessageUnlocatable, messageID, chatID, err)
	}

	if message.ChannelID == 0 {
		return 0, fmt.Errorf("%w: message %d in guild %d has no stored channel",
			platform.ErrMessageUnlocatable, messageID, chatID)
	}

	c.channels.Set(messageID, message.ChannelID)

	return message.ChannelID, nil
}

// dispatch records the message's channel and hands it to the handler.
func (c *Client) dispatch(guildID snowflake.ID, msg discord.Message, handler MessageHandler, edited bool) {
	if msg.Author.Bot || handler == nil {
		return
	}

	messageID := int64(msg.ID)
	c.channels.Set(messageID, int64(msg.ChannelID))

	editVersion := 0
	if edited {
		editVersion, _ = c.edits.Get(messageID)
		editVersion++
		c.edits.Set(messageID, editVersion)
	}

	handler(context.Background(), convertMessage(guildID, msg, editVersion), editVersion)
}

// withRetry retries transient REST failures and maps permanent ones to platform errors.
func (c *Client) withRetry(ctx context.Context, operation func() error) error {
	return utils.WithRetry(ctx, func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if mapped := mapError(err); mapped != nil {
			return backoff.Permanent(mapped)
		}

		return err
	}, c.retry)
}

// convertMessage converts a gateway message into a stored message.
func convertMessage(guildID snowflake.ID, msg discord.Message, editVersion int) *types.Message {
	message := &types.Message{
		ChatID:      int64(guildID),
		MessageID:   int64(msg.ID),
		ChannelID:   int64(msg.ChannelID),
		UserID:      int64(msg.Author.ID),
		Text:        msg.Content,
		IsReply:     msg.MessageReference != nil,
		SentAt:      msg.CreatedAt,
		EditVersion: editVersion,
		UpdatedAt:   time.Now(),
	}

	if len(msg.Attachments) > 0 {
		attachment := msg.Attachments[0]
		message.AttachmentURL = attachment.URL

		if attachment.ContentType != nil {
			message.ContentType = *attachment.ContentType
		}
	}

	return message
}

// mapError converts permanent Discord errors into platform errors.
// Returns nil for errors worth retrying.
func mapError(err error) error {
	var restErr *rest.Error
	if !errors.As(err, &restErr) {
		return nil
	}

	switch restErr.Code {
	case codeMissingPermissions, codeMissingAccess:
		return fmt.Errorf("%w: %w", platform.ErrMissingPermissions, err)
	case codeUnknownMessage, codeUnknownChannel:
		return fmt.Errorf("%w: %w", platform.ErrMessageNotFound, err)
	case codeCannotSendMessages:
		return fmt.Errorf("%w: %w", platform.ErrDirectMessagesClosed, err)
	}

	if restErr.Response != nil {
		status := restErr.Response.StatusCode
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return nil
		}
	}

	return err
}

// hasCode reports whether err is a Discord error with the given JSON code.
func hasCode(err error, code int) bool {
	var restErr *rest.Error
	return errors.As(err, &restErr) && int(restErr.Code) == code
}
