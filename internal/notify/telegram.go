// Package notify sends listing notifications to the operator's Telegram chat.
package notify

import (
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"carwatch/internal/model"
)

// TransportError classifies a failed send. Retryable failures (rate limit,
// Telegram backend errors) may succeed later; fatal ones (bad chat, bad
// token) will not.
type TransportError struct {
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	kind := "fatal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("telegram send (%s): %v", kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends notifications through the Telegram bot API.
type Telegram struct {
	api    telegramAPI
	chatID int64
	log    *slog.Logger
}

// New creates a Telegram notifier for the given bot token and target chat.
func New(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// NewWithAPI creates a Telegram notifier with a custom API implementation
// (useful for testing).
func NewWithAPI(api telegramAPI, chatID int64, log *slog.Logger) *Telegram {
	return &Telegram{api: api, chatID: chatID, log: log}
}

// SendListing sends one qualifying listing, as a photo with caption when
// the ad has an image, falling back to plain text if the photo is refused.
func (t *Telegram) SendListing(l model.Listing, res model.MatchResult) error {
	text := FormatListing(l, res)

	if l.ImageURL != "" {
		photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileURL(l.ImageURL))
		photo.Caption = text
		_, err := t.api.Send(photo)
		if err == nil {
			return nil
		}
		t.log.Warn("photo send failed, falling back to text", "key", l.Key(), "error", err)
	}

	return t.SendText(text)
}

// SendText sends a plain text message to the operator chat.
func (t *Telegram) SendText(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.Code == 429 || apiErr.Code >= 500
		return &TransportError{Retryable: retryable, Err: err}
	}
	// Network-level failure, worth trying again next cycle.
	return &TransportError{Retryable: true, Err: err}
}
