package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docsum/internal/markdown"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const sendSpinnerInterval = 3 * time.Second

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	_, err := b.api.SendChatAction(ctx, &tgbot.SendChatActionParams{
		ChatID: chatID,
		Action: models.ChatActionTyping,
	})
	if err != nil && ctx.Err() == nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(ctx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.sendTyping(ctx, chatID)
			}
		}
	}()

	return fn()
}

// sendMessage sends MarkdownV2 text that is already escaped.
func (b *Bot) sendMessage(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]models.InlineKeyboardButton,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	params := &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   normalizedText,
		// See https://core.telegram.org/bots/api#markdownv2-style.
		ParseMode: models.ParseModeMarkdown,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: tgbot.True(),
		},
	}
	if len(keyboard) > 0 {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}

	return b.rateLimiter.Do(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.SendMessage(ctx, params)
		return err
	})
}

// sendLongText sends a header followed by plain text split to the message
// limit. The header must be escaped, the text must not.
func (b *Bot) sendLongText(ctx context.Context, chatID int64, header string, text string) error {
	var errs []error
	for i, part := range longTextMessages(header, text) {
		if err := b.sendMessage(ctx, chatID, part, nil); err != nil {
			errs = append(errs, fmt.Errorf("send part %d: %w", i+1, err))
		}
	}

	return errors.Join(errs...)
}

// longTextMessages puts the header in front of the first part when both fit
// into one message.
func longTextMessages(header string, text string) []string {
	parts := markdown.SplitV2(text, markdown.MaxMessageLength)

	if len(parts) == 0 {
		return []string{header + "\n\n_empty_"}
	}

	first := header + "\n\n" + parts[0]
	if markdown.Len(first) > markdown.MaxMessageLength {
		return append([]string{header}, parts...)
	}

	parts[0] = first

	return parts
}

func summarizeKeyboard(key string) [][]models.InlineKeyboardButton {
	return [][]models.InlineKeyboardButton{
		{{Text: "📝 Summarize", CallbackData: summarizeCallbackPrefix + key}},
	}
}
