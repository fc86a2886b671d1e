package bot

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"docsum/internal/domain"
	"docsum/internal/pipeline"
	"docsum/internal/ratelimiter"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	updateProcessingTimeout = 30 * time.Minute
	downloadTimeout         = 2 * time.Minute
	pendingDocumentTTL      = 24 * time.Hour
	pendingDocumentsMax     = 1024
	historyLimit            = 10

	summarizeCallbackPrefix = "sum_"
)

// telegramAPI is the part of the Bot API the handlers use.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *tgbot.SendChatActionParams) (bool, error)
	GetFile(ctx context.Context, params *tgbot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
	AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error)
}

type DocumentStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	List(ctx context.Context) ([]domain.StoredDocument, error)
}

type DocumentIndex interface {
	UpsertDocument(ctx context.Context, name string, size int64, userID int64, storedAt time.Time) error
	RecentRuns(ctx context.Context, limit int) ([]domain.Run, error)
}

type DocumentSummarizer interface {
	Summarize(ctx context.Context, name string, observers ...pipeline.Observer) (pipeline.Result, error)
}

type Config struct {
	Token        string
	AllowedUsers []int64
	// MaxDownloadBytes bounds documents received as files or links.
	MaxDownloadBytes int64
}

type Bot struct {
	client           *tgbot.Bot
	api              telegramAPI
	rateLimiter      *ratelimiter.RateLimiter
	store            DocumentStore
	index            DocumentIndex
	summarizer       DocumentSummarizer
	pending          *pendingDocuments
	hashKey          []byte
	httpClient       *http.Client
	allowedUsers     []int64
	maxDownloadBytes int64
	now              func() time.Time
	log              *slog.Logger
}

func New(
	cfg Config,
	store DocumentStore,
	index DocumentIndex,
	summarizer DocumentSummarizer,
	log *slog.Logger,
) (*Bot, error) {
	b, err := newBot(nil, cfg, store, index, summarizer, log)
	if err != nil {
		return nil, err
	}

	client, err := tgbot.New(strings.TrimSpace(cfg.Token), tgbot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		b.rateLimiter.Stop()
		return nil, err
	}

	b.client = client
	b.api = client

	return b, nil
}

func newBot(
	api telegramAPI,
	cfg Config,
	store DocumentStore,
	index DocumentIndex,
	summarizer DocumentSummarizer,
	log *slog.Logger,
) (*Bot, error) {
	hashKey := make([]byte, 32)
	if _, err := rand.Read(hashKey); err != nil {
		return nil, fmt.Errorf("generate hash key: %w", err)
	}

	return &Bot{
		api:              api,
		rateLimiter:      ratelimiter.New(log),
		store:            store,
		index:            index,
		summarizer:       summarizer,
		pending:          newPendingDocuments(pendingDocumentsMax),
		hashKey:          hashKey,
		httpClient:       &http.Client{Timeout: downloadTimeout},
		allowedUsers:     cfg.AllowedUsers,
		maxDownloadBytes: cfg.MaxDownloadBytes,
		now:              time.Now,
		log:              log,
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.client.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *tgbot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message
		if message.From == nil {
			return
		}

		userID := message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", message.From.Username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		chatID := callbackChatID(cb)

		if !b.userAllowed(cb.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", cb.From.ID,
				"chatID", chatID,
				"username", cb.From.Username,
				"data", cb.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, cb, chatID); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", cb.From.ID,
				"data", cb.Data)
		}
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	switch {
	case cb.Message.Message != nil:
		return cb.Message.Message.Chat.ID
	case cb.Message.InaccessibleMessage != nil:
		return cb.Message.InaccessibleMessage.Chat.ID
	default:
		return cb.From.ID
	}
}
