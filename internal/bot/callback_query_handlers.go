package bot

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, cb *models.CallbackQuery, chatID int64) error {
	if _, err := b.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: cb.ID,
	}); err != nil {
		b.log.ErrorContext(ctx, "Failed to answer callback query",
			"error", err,
			"chatID", chatID,
			"data", cb.Data)
	}

	key, ok := strings.CutPrefix(cb.Data, summarizeCallbackPrefix)
	if !ok {
		return fmt.Errorf("unknown callback data: %q", cb.Data)
	}

	name, ok := b.pending.get(key, b.now())
	if !ok {
		return b.sendMessage(ctx, chatID,
			"✖️ Button is expired\\. Use /summarize \\<name\\>\\.", nil)
	}

	return b.withSpinner(ctx, chatID, func() error {
		return b.summarize(ctx, name, chatID)
	})
}
