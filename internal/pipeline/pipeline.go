package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docsum/internal/chunker"
	"docsum/internal/domain"
	"docsum/internal/summarizer"
	"docsum/internal/tokenizer"
)

const DefaultSummarizeTimeout = 2 * time.Minute

type DocumentStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Load(ctx context.Context, name string) ([]byte, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document, data []byte) (string, error)
}

type Config struct {
	WindowSize int
	MinLength  int
	MaxLength  int
	// SummarizeTimeout bounds one summarizer call. Zero disables the bound.
	SummarizeTimeout time.Duration
}

type Result struct {
	Summary    string
	ChunkCount int
	TokenCount int
	Duration   time.Duration
}

// Pipeline turns a stored document into a summary: extract, tokenize, chunk,
// summarize every chunk in order, then aggregate. The first failure ends the
// request; nothing partial is returned.
type Pipeline struct {
	store      DocumentStore
	extractor  TextExtractor
	tokenizer  tokenizer.Tokenizer
	summarizer summarizer.Summarizer
	cfg        Config
	observers  []Observer
	log        *slog.Logger
}

type Option func(*Pipeline)

func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, o)
	}
}

func New(
	store DocumentStore,
	extractor TextExtractor,
	tok tokenizer.Tokenizer,
	s summarizer.Summarizer,
	cfg Config,
	log *slog.Logger,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil || extractor == nil || tok == nil || s == nil {
		return nil, errors.New("pipeline dependencies are missing")
	}

	if cfg.MinLength < 0 || cfg.MaxLength < 1 || cfg.MinLength > cfg.MaxLength {
		return nil, domain.InvalidConfiguration(fmt.Sprintf(
			"summary length bounds are invalid (min = %d, max = %d)", cfg.MinLength, cfg.MaxLength))
	}

	p := &Pipeline{
		store:      store,
		extractor:  extractor,
		tokenizer:  tok,
		summarizer: s,
		cfg:        cfg,
		log:        log,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

type run struct {
	doc       domain.Document
	state     State
	text      string
	tokens    []int
	chunks    []domain.Chunk
	next      int
	summaries []string
	summary   string
	err       error
	observers []Observer
}

// Summarize runs the whole pipeline for the stored document name. Extra
// observers receive the events of this request only.
func (p *Pipeline) Summarize(ctx context.Context, name string, observers ...Observer) (Result, error) {
	start := time.Now()

	r := &run{
		doc:       domain.NewDocument(strings.TrimSpace(name)),
		state:     StateIdle,
		observers: observers,
	}

	p.transition(ctx, r, StateExtracting)

	for !r.state.Terminal() {
		if err := ctx.Err(); err != nil {
			p.fail(ctx, r, p.interrupted(r, err))
			break
		}

		switch r.state {
		case StateExtracting:
			p.advance(ctx, r, p.extract(ctx, r), StateTokenizing)
		case StateTokenizing:
			p.advance(ctx, r, p.tokenize(r), StateChunking)
		case StateChunking:
			err := p.chunk(r)
			if err == nil && len(r.chunks) == 0 {
				p.transition(ctx, r, StateAggregating)
				continue
			}
			p.advance(ctx, r, err, StateSummarizing)
		case StateSummarizing:
			err := p.summarizeNext(ctx, r)
			switch {
			case err != nil:
				p.fail(ctx, r, err)
			case r.next == len(r.chunks):
				p.transition(ctx, r, StateAggregating)
			default:
				p.transition(ctx, r, StateSummarizing)
			}
		case StateAggregating:
			r.summary = Aggregate(r.summaries)
			r.summaries = nil
			p.transition(ctx, r, StateDone)
		default:
			p.fail(ctx, r, fmt.Errorf("unexpected state %s", r.state))
		}
	}

	if r.state == StateFailed {
		return Result{}, r.err
	}

	res := Result{
		Summary:    r.summary,
		ChunkCount: len(r.chunks),
		TokenCount: len(r.tokens),
		Duration:   time.Since(start),
	}

	p.log.InfoContext(ctx, "Document is summarized",
		"document", r.doc.Name,
		"tokens", res.TokenCount,
		"chunks", res.ChunkCount,
		"summaryLen", len(res.Summary),
		"durationSeconds", res.Duration.Seconds())

	return res, nil
}

func (p *Pipeline) extract(ctx context.Context, r *run) error {
	exists, err := p.store.Exists(ctx, r.doc.Name)
	if err != nil {
		return domain.ExtractionFailure(r.doc.Name, err)
	}
	if !exists {
		return domain.DocumentNotFound(r.doc.Name, nil)
	}

	if r.doc.Format == domain.FormatUnknown {
		return domain.UnsupportedFormat(r.doc.Extension)
	}

	data, err := p.store.Load(ctx, r.doc.Name)
	if err != nil {
		if domain.KindOf(err) != "" {
			return err
		}
		return domain.ExtractionFailure(r.doc.Name, err)
	}

	text, err := p.extractor.Extract(ctx, r.doc, data)
	if err != nil {
		return err
	}

	r.text = text

	return nil
}

func (p *Pipeline) tokenize(r *run) error {
	tokens, err := p.tokenizer.Tokenize(r.text)
	if err != nil {
		return domain.ExtractionFailure(r.doc.Name, fmt.Errorf("tokenize text: %w", err))
	}

	r.tokens = tokens
	r.text = ""

	return nil
}

func (p *Pipeline) chunk(r *run) error {
	chunks, err := chunker.Chunk(r.tokens, p.cfg.WindowSize)
	if err != nil {
		return err
	}

	r.chunks = chunks
	r.summaries = make([]string, 0, len(chunks))

	return nil
}

func (p *Pipeline) summarizeNext(ctx context.Context, r *run) error {
	summary, err := p.summarizeChunk(ctx, r.chunks[r.next])
	if err != nil {
		return err
	}

	if summary != "" {
		r.summaries = append(r.summaries, summary)
	}
	r.next++

	return nil
}

// summarizeChunk decodes one window and summarizes it under the per-call
// timeout. A window that decodes to blank text, e.g. only special tokens, is
// not sent to the model and adds nothing to the aggregate.
func (p *Pipeline) summarizeChunk(ctx context.Context, chunk domain.Chunk) (string, error) {
	text := p.tokenizer.Decode(chunk.Tokens)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	callCtx := ctx
	if p.cfg.SummarizeTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.SummarizeTimeout)
		defer cancel()
	}

	summary, err := p.summarizer.Summarize(callCtx, summarizer.Input{
		Text:      text,
		MinLength: p.cfg.MinLength,
		MaxLength: p.cfg.MaxLength,
	})
	if err != nil {
		return "", domain.SummarizationFailure(chunk.Index+1, err)
	}

	return summary, nil
}

func (p *Pipeline) interrupted(r *run, err error) error {
	if r.state == StateSummarizing && r.next < len(r.chunks) {
		return domain.SummarizationFailure(r.chunks[r.next].Index+1, err)
	}
	return fmt.Errorf("%s %q: %w", r.state, r.doc.Name, err)
}

func (p *Pipeline) advance(ctx context.Context, r *run, err error, next State) {
	if err != nil {
		p.fail(ctx, r, err)
		return
	}
	p.transition(ctx, r, next)
}

func (p *Pipeline) fail(ctx context.Context, r *run, err error) {
	r.err = err
	p.transition(ctx, r, StateFailed)
}

func (p *Pipeline) transition(ctx context.Context, r *run, next State) {
	from := r.state
	r.state = next

	e := Event{
		Document:   r.doc.Name,
		State:      next,
		ChunkCount: len(r.chunks),
		TokenCount: len(r.tokens),
		Err:        r.err,
	}

	if next == StateSummarizing {
		e.Chunk = r.next + 1
	}

	if next == StateDone {
		e.Summary = r.summary
	}

	p.log.DebugContext(ctx, "Pipeline state is changed",
		"document", r.doc.Name,
		"from", from.String(),
		"to", next.String(),
		"chunk", e.Chunk,
		"chunks", e.ChunkCount)

	for _, o := range p.observers {
		o.Observe(ctx, e)
	}
	for _, o := range r.observers {
		o.Observe(ctx, e)
	}
}
