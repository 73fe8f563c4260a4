package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"finbot/internal/models"
)

const telegramPollTimeout = 60

// Telegram is a long-polling Messenger. Identities are Telegram user ids;
// replies go to the chat the message came from.
type Telegram struct {
	token string

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

// NewTelegram checks the token against the Bot API and returns a Messenger.
func NewTelegram(token string) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	return &Telegram{token: token, api: api}, nil
}

// Channel implements Messenger.
func (t *Telegram) Channel() models.ChatChannel {
	return models.ChatChannelTelegram
}

// Listen implements Messenger. A BotAPI cannot poll again once its updates
// have been stopped, so every Listen after the first opens a new client.
func (t *Telegram) Listen(ctx context.Context) (<-chan Inbound, error) {
	t.mu.Lock()
	api := t.api
	if api == nil {
		var err error
		api, err = tgbotapi.NewBotAPI(t.token)
		if err != nil {
			t.mu.Unlock()
			return nil, fmt.Errorf("failed to connect to telegram: %w", err)
		}
		t.api = api
	}
	t.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegramPollTimeout
	updates := api.GetUpdatesChan(u)

	out := make(chan Inbound)
	go func() {
		defer close(out)
		defer func() {
			api.StopReceivingUpdates()
			t.mu.Lock()
			if t.api == api {
				t.api = nil
			}
			t.mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				in, ok := inboundFromUpdate(update)
				if !ok {
					continue
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// inboundFromUpdate keeps new text messages only. Edits are dropped so an
// edited expense is not recorded twice.
func inboundFromUpdate(update tgbotapi.Update) (Inbound, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return Inbound{}, false
	}
	return Inbound{
		Message: Message{
			Channel:  models.ChatChannelTelegram,
			Identity: strconv.FormatInt(msg.From.ID, 10),
			Text:     msg.Text,
		},
		ReplyTo: strconv.FormatInt(msg.Chat.ID, 10),
	}, true
}

// Send implements Messenger.
func (t *Telegram) Send(_ context.Context, to, text string) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}

	t.mu.Lock()
	api := t.api
	t.mu.Unlock()
	if api == nil {
		return errors.New("telegram bot is not connected")
	}

	if _, err := api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
