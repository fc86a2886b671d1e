package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docsum/internal/domain"
	"docsum/internal/extract"
	"docsum/internal/markdown"
	"docsum/internal/pipeline"
)

const welcomeText = `🤖 *Welcome to DocSum\!*

I summarize documents\. You can:

– Send a \.pdf, \.docx or \.txt file, or an https link to one
– Press 📝 Summarize under the stored document
– Summarize a stored document with /summarize \<name\>
– Get stored documents with /list
– Get recent summarization runs with /history`

func (b *Bot) handleListCommand(ctx context.Context, chatID int64) error {
	docs, err := b.store.List(ctx)

	if len(docs) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("list documents: %w", err))
		}

		sendErr := b.sendMessage(ctx, chatID, "✖️ Document list is empty or there is a bug\\.", nil)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("📄 *Found %d documents:*\n\n", len(docs)))

	for i, doc := range docs {
		message.WriteString(fmt.Sprintf("%d\\. `%s` \\(%s\\)\n",
			i+1,
			markdown.EscapeV2(doc.Name),
			markdown.EscapeV2(formatSize(doc.Size))))
	}

	return b.sendMessage(ctx, chatID, message.String(), nil)
}

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64) error {
	runs, err := b.index.RecentRuns(ctx, historyLimit)

	if len(runs) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch recent runs: %w", err))
		}

		sendErr := b.sendMessage(ctx, chatID, "✖️ History is empty or there is a bug\\.", nil)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🕘 *Last %d runs:*\n\n", len(runs)))

	for _, run := range runs {
		message.WriteString(markdown.EscapeV2(formatRun(run)))
		message.WriteString("\n")
	}

	return b.sendMessage(ctx, chatID, message.String(), nil)
}

func (b *Bot) handleSummarizeCommand(ctx context.Context, name string, chatID int64) error {
	if name == "" {
		return b.sendMessage(ctx, chatID, "✖️ Usage: /summarize \\<name\\>", nil)
	}

	return b.summarize(ctx, name, chatID)
}

func (b *Bot) summarize(ctx context.Context, name string, chatID int64) error {
	progress := pipeline.ObserverFunc(func(ctx context.Context, e pipeline.Event) {
		if e.State != pipeline.StateSummarizing || e.Chunk != 1 || e.ChunkCount < 2 {
			return
		}

		text := fmt.Sprintf("⏳ Summarizing %d chunks\\.\\.\\.", e.ChunkCount)
		if err := b.sendMessage(ctx, chatID, text, nil); err != nil {
			b.log.ErrorContext(ctx, "Failed to send progress",
				"error", err,
				"chatID", chatID,
				"document", e.Document)
		}
	})

	res, err := b.summarizer.Summarize(ctx, name, progress)
	if err != nil {
		errs := []error{fmt.Errorf("summarize document: %w", err)}

		if sendErr := b.sendMessage(ctx, chatID, failureText(err), nil); sendErr != nil {
			errs = append(errs, fmt.Errorf("send message: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	header := fmt.Sprintf("📝 *Summary of %s*", markdown.EscapeV2(name))

	return b.sendLongText(ctx, chatID, header, res.Summary)
}

// failureText is the escaped reply for a failed summarization.
func failureText(err error) string {
	var e *domain.Error
	if !errors.As(err, &e) {
		return "❌ Failed\\."
	}

	switch e.Kind {
	case domain.KindDocumentNotFound:
		return "✖️ Document is not found\\. See /list\\."
	case domain.KindUnsupportedFormat:
		ext := e.Extension
		if ext == "" {
			ext = "(none)"
		}
		return fmt.Sprintf("✖️ Format %s is not supported\\. Supported: %s\\.",
			markdown.EscapeV2(ext),
			markdown.EscapeV2(strings.Join(extract.SupportedExtensions(), ", ")))
	case domain.KindExtractionFailure:
		return "❌ Failed to read the document\\."
	case domain.KindSummarizationFailure:
		return fmt.Sprintf("❌ Failed to summarize chunk %d\\.", e.ChunkIndex)
	default:
		return "❌ Failed\\."
	}
}

func formatRun(run domain.Run) string {
	line := fmt.Sprintf("%s %s %s",
		run.StartedAt.UTC().Format(time.DateTime),
		run.DocumentName,
		run.Status)

	switch run.Status {
	case domain.RunStatusDone:
		line += fmt.Sprintf(" (%d chunks, %d tokens)", run.ChunkCount, run.TokenCount)
	case domain.RunStatusFailed:
		if run.FailureKind != "" {
			line += " (" + run.FailureKind + ")"
		}
	}

	return line
}

func formatSize(size int64) string {
	const unit = 1024

	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
