package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegramAPI is the slice of *tgbotapi.BotAPI the adapter uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram adapts the Telegram Bot API to the engine. It long-polls for
// updates and renders Outbound replies with inline or reply keyboards.
type Telegram struct {
	api     telegramAPI
	timeout int
	logger  *zap.Logger
}

// NewTelegram authorises token against the Bot API.
func NewTelegram(token string, debug bool, timeout int, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = debug
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram bot authorised", zap.String("username", api.Self.UserName))
	return newTelegram(api, timeout, logger), nil
}

func newTelegram(api telegramAPI, timeout int, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 60
	}
	return &Telegram{api: api, timeout: timeout, logger: logger}
}

// Run long-polls until ctx is cancelled, passing each update to handle in
// arrival order. Callback queries are acknowledged before handling.
func (t *Telegram) Run(ctx context.Context, handle func(context.Context, Inbound)) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = t.timeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.api.GetUpdatesChan(cfg)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.CallbackQuery != nil {
				if _, err := t.api.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
					t.logger.Warn("callback ack failed", zap.Error(err))
				}
			}
			in, ok := toInbound(update)
			if !ok {
				continue
			}
			handle(ctx, in)
		}
	}
}

// Deliver sends msg to chatID.
func (t *Telegram) Deliver(_ context.Context, chatID int64, msg Outbound) error {
	out := tgbotapi.NewMessage(chatID, msg.Text)
	switch {
	case len(msg.Choices) > 0:
		out.ReplyMarkup = inlineKeyboard(msg.Choices)
	case msg.Menu:
		out.ReplyMarkup = menuKeyboard(MainMenu)
	}
	if _, err := t.api.Send(out); err != nil {
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// Notify sends plain text to chatID.
func (t *Telegram) Notify(ctx context.Context, chatID int64, text string) error {
	return t.Deliver(ctx, chatID, Outbound{Text: text})
}

func toInbound(update tgbotapi.Update) (Inbound, bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil {
			return Inbound{}, false
		}
		chatID := cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		return Inbound{UserID: cq.From.ID, ChatID: chatID, Callback: cq.Data}, true
	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Chat == nil {
			return Inbound{}, false
		}
		in := Inbound{UserID: m.From.ID, ChatID: m.Chat.ID, Text: m.Text}
		if m.IsCommand() {
			in.Command = m.Command()
		}
		return in, true
	default:
		return Inbound{}, false
	}
}

func inlineKeyboard(choices [][]Choice) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, line := range choices {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(line))
		for _, c := range line {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func menuKeyboard(labels [][]string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(labels))
	for _, line := range labels {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(line))
		for _, label := range line {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	return kb
}
