package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Telegram delivers notifications to a single operator chat
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram authorizes the bot token
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing Telegram bot: %w", err)
	}

	t := &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "notify_telegram").Logger(),
	}
	t.logger.Info().Str("username", bot.Self.UserName).Msg("Authorized on Telegram")
	return t, nil
}

func (t *Telegram) SendSignal(ctx context.Context, p Proposal) {
	id := strconv.FormatInt(p.Details.SignalID, 10)
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Executed", string(CmdExecuted)+"_"+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Rejected", string(CmdRejected)+"_"+id),
			tgbotapi.NewInlineKeyboardButtonData("⏳ Pending", string(CmdPending)+"_"+id),
		),
	)
	t.send(ctx, FormatSignal(p), &markup)
}

func (t *Telegram) SendHeartbeat(ctx context.Context, h Heartbeat) {
	t.send(ctx, FormatHeartbeat(h), nil)
}

func (t *Telegram) SendAlert(ctx context.Context, sev Severity, msg string) {
	t.send(ctx, FormatAlert(sev, msg), nil)
}

func (t *Telegram) SendMessage(ctx context.Context, text string) {
	t.send(ctx, text, nil)
}

func (t *Telegram) send(ctx context.Context, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if ctx.Err() != nil {
		t.logger.Warn().Err(ctx.Err()).Msg("Context done, message dropped")
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Int64("chat_id", t.chatID).Msg("Failed to send Telegram message")
	}
}

// Listen polls for updates from the operator chat and emits parsed commands.
// The channel is closed when ctx is done.
func (t *Telegram) Listen(ctx context.Context) <-chan Command {
	out := make(chan Command, 32)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := t.bot.GetUpdatesChan(updateConfig)

	go func() {
		defer close(out)
		defer t.bot.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				cmd, ok := t.command(update)
				if !ok {
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (t *Telegram) command(update tgbotapi.Update) (Command, bool) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil || cb.Message.Chat.ID != t.chatID {
			return Command{}, false
		}
		if _, err := t.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to acknowledge callback")
		}
		cmd, err := ParseCallback(cb.Data)
		if err != nil {
			t.logger.Warn().Err(err).Msg("Ignoring callback")
			return Command{}, false
		}
		return cmd, true

	case update.Message != nil:
		if update.Message.Chat.ID != t.chatID {
			t.logger.Warn().Int64("chat_id", update.Message.Chat.ID).Msg("Ignoring message from unknown chat")
			return Command{}, false
		}
		cmd, err := ParseCommand(update.Message.Text)
		if err != nil {
			t.send(context.Background(), err.Error()+"\n\n"+HelpText, nil)
			return Command{}, false
		}
		return cmd, true
	}
	return Command{}, false
}
