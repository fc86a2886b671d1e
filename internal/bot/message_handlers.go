package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"docsum/internal/markdown"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"mvdan.cc/xurls/v2"
)

var errTooLarge = errors.New("document is too large")

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID

	return b.withSpinner(ctx, chatID, func() error {
		if message.Document != nil {
			return b.handleDocument(ctx, message.Document, chatID, userID)
		}

		text := strings.TrimSpace(message.Text)

		switch {
		case strings.HasPrefix(text, "/start"), strings.HasPrefix(text, "/help"):
			return b.sendMessage(ctx, chatID, welcomeText, nil)
		case strings.HasPrefix(text, "/list"):
			return b.handleListCommand(ctx, chatID)
		case strings.HasPrefix(text, "/history"):
			return b.handleHistoryCommand(ctx, chatID)
		case strings.HasPrefix(text, "/summarize"):
			name := strings.TrimSpace(strings.TrimPrefix(text, "/summarize"))
			return b.handleSummarizeCommand(ctx, name, chatID)
		default:
			return b.handleRandomText(ctx, text, chatID, userID)
		}
	})
}

func (b *Bot) handleDocument(
	ctx context.Context,
	doc *models.Document,
	chatID int64,
	userID int64,
) error {
	if b.maxDownloadBytes > 0 && doc.FileSize > b.maxDownloadBytes {
		return b.sendMessage(ctx, chatID, "✖️ Document is too large\\.", nil)
	}

	file, err := b.api.GetFile(ctx, &tgbot.GetFileParams{FileID: doc.FileID})
	if err != nil {
		return b.replyFailed(ctx, chatID, fmt.Errorf("get file: %w", err))
	}

	name := strings.TrimSpace(doc.FileName)
	if name == "" {
		name = path.Base(file.FilePath)
	}

	return b.storeFromURL(ctx, b.api.FileDownloadLink(file), name, chatID, userID)
}

// handleRandomText stores documents behind https links found in text. Links
// are only followed for a bot restricted to allowed users.
func (b *Bot) handleRandomText(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
) error {
	links := documentLinks(text)
	if len(links) == 0 {
		return b.sendMessage(ctx, chatID, "✖️ Send a document or a link to one\\. See /help\\.", nil)
	}

	if len(b.allowedUsers) == 0 {
		b.log.WarnContext(ctx, "Link download is disabled without allowed users",
			"chatID", chatID,
			"userID", userID,
			"linkCount", len(links))

		return b.sendMessage(ctx, chatID, "✖️ Links are disabled\\. Send the document as a file\\.", nil)
	}

	var errs []error
	for _, link := range links {
		name, err := linkName(link)
		if err != nil {
			errs = append(errs, err)

			sendErr := b.sendMessage(ctx, chatID,
				fmt.Sprintf("✖️ Link %s has no file name\\.", markdown.EscapeV2(link)), nil)
			if sendErr != nil {
				errs = append(errs, fmt.Errorf("send message: %w", sendErr))
			}

			continue
		}

		if err = b.storeFromURL(ctx, link, name, chatID, userID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) storeFromURL(
	ctx context.Context,
	link string,
	name string,
	chatID int64,
	userID int64,
) error {
	data, err := b.download(ctx, link)
	if errors.Is(err, errTooLarge) {
		return b.sendMessage(ctx, chatID, "✖️ Document is too large\\.", nil)
	}
	if err != nil {
		return b.replyFailed(ctx, chatID, fmt.Errorf("download document: %w", err))
	}

	stored, err := b.store.Save(ctx, name, bytes.NewReader(data))
	if err != nil {
		return b.replyFailed(ctx, chatID, fmt.Errorf("save document: %w", err))
	}

	if err = b.index.UpsertDocument(ctx, stored, int64(len(data)), userID, b.now()); err != nil {
		b.log.ErrorContext(ctx, "Failed to record document",
			"error", err,
			"document", stored,
			"userID", userID)
	}

	key := documentKey(b.hashKey, stored)
	now := b.now()
	b.pending.set(key, stored, now.Add(pendingDocumentTTL), now)

	b.log.InfoContext(ctx, "Document is stored",
		"document", stored,
		"size", len(data),
		"chatID", chatID,
		"userID", userID)

	return b.sendMessage(ctx, chatID,
		fmt.Sprintf("✅ Document *%s* is stored\\.", markdown.EscapeV2(stored)),
		summarizeKeyboard(key))
}

func (b *Bot) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			b.log.ErrorContext(ctx, "Failed to close response body",
				"error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	if b.maxDownloadBytes > 0 && resp.ContentLength > b.maxDownloadBytes {
		return nil, errTooLarge
	}

	reader := io.Reader(resp.Body)
	if b.maxDownloadBytes > 0 {
		reader = io.LimitReader(resp.Body, b.maxDownloadBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if b.maxDownloadBytes > 0 && int64(len(data)) > b.maxDownloadBytes {
		return nil, errTooLarge
	}

	return data, nil
}

func (b *Bot) replyFailed(ctx context.Context, chatID int64, err error) error {
	if sendErr := b.sendMessage(ctx, chatID, "❌ Failed\\.", nil); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send message: %w", sendErr))
	}
	return err
}

// documentLinks returns unique https links in order of appearance.
func documentLinks(text string) []string {
	seen := make(map[string]struct{})
	var links []string

	for _, link := range xurls.Strict().FindAllString(text, -1) {
		u, err := url.Parse(link)
		if err != nil || !strings.EqualFold(u.Scheme, "https") {
			continue
		}

		if _, ok := seen[link]; ok {
			continue
		}

		seen[link] = struct{}{}
		links = append(links, link)
	}

	return links
}

// linkName is the unescaped last path segment of link.
func linkName(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("link has no file name: %s", link)
	}

	return name, nil
}
