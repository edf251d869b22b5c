// Package telegram is the message-ingestion boundary: it adapts Telegram
// updates into pipeline requests and routes replies back to the right chat.
// The pipeline itself stays transport-agnostic.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"quotabot/internal/config"
	"quotabot/internal/pipeline"
)

const sendMessageTimeout = 10 * time.Second

// NewTelegramBot creates a new Telegram bot instance using the go-telegram/bot library.
func NewTelegramBot(token string, logger *slog.Logger, opts ...bot.Option) (*bot.Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_bot")

	b, err := bot.New(token, opts...)
	if err != nil {
		log.Error("Failed to create Telegram bot instance", "error", err)
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info("Telegram bot instance created successfully", "token_prefix", token[:8]+"...")
	return b, nil
}

// ResolveBotInfo fetches the bot's own identity for runtime use.
func ResolveBotInfo(ctx context.Context, b *bot.Bot) (config.BotInfo, error) {
	me, err := b.GetMe(ctx)
	if err != nil {
		return config.BotInfo{}, fmt.Errorf("failed to get bot info: %w", err)
	}
	return config.BotInfo{
		ID:        me.ID,
		Username:  me.Username,
		FirstName: me.FirstName,
	}, nil
}

// NewIngestHandler returns the default update handler: it builds a
// RequestContext from each text message, executes the pipeline, and sends
// the reply payload if there is one.
func NewIngestHandler(p *pipeline.Pipeline, cfg *config.Config, logger *slog.Logger) bot.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "ingest")

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		msg := update.Message
		if msg == nil || msg.From == nil || msg.Text == "" {
			log.DebugContext(ctx, "Ignoring update without a usable text message", "update_id", update.ID)
			return
		}
		if msg.From.IsBot {
			return
		}

		req := &pipeline.RequestContext{
			UserID:     msg.From.ID,
			RawText:    msg.Text,
			ReplyToken: strconv.FormatInt(msg.Chat.ID, 10),
			Privileged: cfg.IsPremiumUser(msg.From.ID) || msg.From.IsPremium,
		}

		reply := p.Execute(ctx, req)
		if reply == nil {
			return
		}

		sendReply(ctx, b, log, req.ReplyToken, msg.ID, reply)
	}
}

// sendReply decodes the reply token this adapter minted and delivers the
// payload. The pipeline never looks inside the token; only this boundary
// knows it encodes a chat ID.
func sendReply(ctx context.Context, b *bot.Bot, log *slog.Logger, replyToken string, replyTo int, reply *pipeline.Reply) {
	chatID, err := strconv.ParseInt(replyToken, 10, 64)
	if err != nil {
		log.ErrorContext(ctx, "Invalid reply token", "reply_token", replyToken, "error", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   reply.Text,
	}
	if replyTo > 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: replyTo}
	}

	sent, err := b.SendMessage(sendCtx, params)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send reply message", "error", err, "chat_id", chatID)
		return
	}
	log.DebugContext(ctx, "Sent reply", "chat_id", chatID, "message_id", sent.ID, "card", reply.Card)
}
