package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"docsum/internal/domain"
	"docsum/internal/extract"
	"docsum/internal/pipeline"
	"docsum/internal/summarizer"
)

type memStore struct {
	mu    sync.Mutex
	docs  map[string][]byte
	loads int
}

func newMemStore(docs map[string]string) *memStore {
	s := &memStore{docs: make(map[string][]byte, len(docs))}
	for name, body := range docs {
		s.docs[name] = []byte(body)
	}
	return s
}

func (s *memStore) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.docs[name]
	return ok, nil
}

func (s *memStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++

	data, ok := s.docs[name]
	if !ok {
		return nil, domain.DocumentNotFound(name, nil)
	}
	return data, nil
}

func (s *memStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loads
}

// wordTokenizer maps every whitespace-separated word to one token id.
type wordTokenizer struct {
	mu    sync.Mutex
	ids   map[string]int
	words []string
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{ids: make(map[string]int)}
}

func (w *wordTokenizer) Tokenize(text string) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var tokens []int
	for _, word := range strings.Fields(text) {
		id, ok := w.ids[word]
		if !ok {
			id = len(w.words)
			w.ids[word] = id
			w.words = append(w.words, word)
		}
		tokens = append(tokens, id)
	}
	return tokens, nil
}

func (w *wordTokenizer) Decode(ids []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	words := make([]string, 0, len(ids))
	for _, id := range ids {
		words = append(words, w.words[id])
	}
	return strings.Join(words, " ")
}

func (w *wordTokenizer) MaxInputLength() int {
	return 1024
}

type recordingSummarizer struct {
	mu     sync.Mutex
	inputs []summarizer.Input
	failOn int
	hook   func(ctx context.Context, call int) error
}

func (s *recordingSummarizer) Summarize(ctx context.Context, input summarizer.Input) (string, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, input)
	call := len(s.inputs)
	hook := s.hook
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return "", err
		}
	}

	if call == s.failOn {
		return "", errors.New("model is out of memory")
	}

	return fmt.Sprintf("S%d(%d words).", call, len(strings.Fields(input.Text))), nil
}

func (s *recordingSummarizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.inputs)
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func newPipeline(
	t *testing.T,
	store pipeline.DocumentStore,
	s summarizer.Summarizer,
	cfg pipeline.Config,
	opts ...pipeline.Option,
) *pipeline.Pipeline {
	t.Helper()

	p, err := pipeline.New(store, extract.New(slog.Default()), newWordTokenizer(), s, cfg, slog.Default(), opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func defaultConfig(window int) pipeline.Config {
	return pipeline.Config{WindowSize: window, MinLength: 25, MaxLength: 150, SummarizeTimeout: time.Second}
}

func TestAggregate(t *testing.T) {
	if got := pipeline.Aggregate([]string{"A.", "B.", "C."}); got != "A. B. C." {
		t.Fatalf("unexpected aggregate: %q", got)
	}
	if got := pipeline.Aggregate(nil); got != "" {
		t.Fatalf("expected empty aggregate, got %q", got)
	}
}

func TestSummarizeThreeChunks(t *testing.T) {
	store := newMemStore(map[string]string{"long.txt": words(2500)})
	stub := &recordingSummarizer{}
	p := newPipeline(t, store, stub, defaultConfig(1000))

	res, err := p.Summarize(context.Background(), "long.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "S1(1000 words). S2(1000 words). S3(500 words)."
	if res.Summary != want {
		t.Fatalf("unexpected summary:\n got %q\nwant %q", res.Summary, want)
	}

	if res.ChunkCount != 3 || res.TokenCount != 2500 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	if !strings.HasPrefix(stub.inputs[0].Text, "w0 w1") || !strings.HasPrefix(stub.inputs[2].Text, "w2000 ") {
		t.Fatalf("chunks were summarized out of order")
	}

	for _, in := range stub.inputs {
		if in.MinLength != 25 || in.MaxLength != 150 {
			t.Fatalf("unexpected length bounds: %+v", in)
		}
	}
}

func TestSummarizeChunkFailureFailsRequest(t *testing.T) {
	store := newMemStore(map[string]string{"long.txt": words(2500)})
	stub := &recordingSummarizer{failOn: 2}
	p := newPipeline(t, store, stub, defaultConfig(1000))

	res, err := p.Summarize(context.Background(), "long.txt")
	if !domain.IsKind(err, domain.KindSummarizationFailure) {
		t.Fatalf("expected SummarizationFailure, got %v", err)
	}

	var e *domain.Error
	if !errors.As(err, &e) || e.ChunkIndex != 2 {
		t.Fatalf("expected failure to reference chunk 2, got %+v", e)
	}

	if res.Summary != "" {
		t.Fatalf("expected no summary, got %q", res.Summary)
	}

	if got := stub.callCount(); got != 2 {
		t.Fatalf("expected summarization to stop at chunk 2, got %d calls", got)
	}
}

func TestSummarizeEmptyDocument(t *testing.T) {
	store := newMemStore(map[string]string{"empty.txt": ""})
	stub := &recordingSummarizer{}
	p := newPipeline(t, store, stub, defaultConfig(1000))

	res, err := p.Summarize(context.Background(), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Summary != "" || res.ChunkCount != 0 || res.TokenCount != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if stub.callCount() != 0 {
		t.Fatalf("expected no summarizer calls")
	}
}

func TestSummarizeShortDocumentSingleChunk(t *testing.T) {
	store := newMemStore(map[string]string{"short.txt": words(10)})
	stub := &recordingSummarizer{}
	p := newPipeline(t, store, stub, defaultConfig(1000))

	res, err := p.Summarize(context.Background(), "short.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ChunkCount != 1 || res.Summary != "S1(10 words)." {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSummarizeUnsupportedFormat(t *testing.T) {
	store := newMemStore(map[string]string{"letter.rtf": "{\\rtf1 hello}"})
	stub := &recordingSummarizer{}
	p := newPipeline(t, store, stub, defaultConfig(1000))

	_, err := p.Summarize(context.Background(), "letter.rtf")
	if !domain.IsKind(err, domain.KindUnsupportedFormat) {
		t.Fatalf("expected UnsupportedFormat, got %v", err)
	}

	if store.loadCount() != 0 {
		t.Fatalf("expected document not to be read")
	}
	if stub.callCount() != 0 {
		t.Fatalf("expected no summarizer calls")
	}
}

func TestSummarizeMissingDocument(t *testing.T) {
	p := newPipeline(t, newMemStore(nil), &recordingSummarizer{}, defaultConfig(1000))

	_, err := p.Summarize(context.Background(), "missing.txt")
	if !domain.IsKind(err, domain.KindDocumentNotFound) {
		t.Fatalf("expected DocumentNotFound, got %v", err)
	}
}

func TestSummarizeExtractionFailure(t *testing.T) {
	store := newMemStore(map[string]string{"broken.docx": "not a zip archive"})
	p := newPipeline(t, store, &recordingSummarizer{}, defaultConfig(1000))

	_, err := p.Summarize(context.Background(), "broken.docx")
	if !domain.IsKind(err, domain.KindExtractionFailure) {
		t.Fatalf("expected ExtractionFailure, got %v", err)
	}
}

func TestSummarizeInvalidWindow(t *testing.T) {
	store := newMemStore(map[string]string{"doc.txt": words(5)})
	p := newPipeline(t, store, &recordingSummarizer{}, defaultConfig(0))

	_, err := p.Summarize(context.Background(), "doc.txt")
	if !domain.IsKind(err, domain.KindInvalidConfiguration) {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
}

func TestNewRejectsInvalidLengths(t *testing.T) {
	_, err := pipeline.New(newMemStore(nil), extract.New(slog.Default()), newWordTokenizer(), &recordingSummarizer{},
		pipeline.Config{WindowSize: 10, MinLength: 200, MaxLength: 150}, slog.Default())
	if !domain.IsKind(err, domain.KindInvalidConfiguration) {
		t.Fatalf("expected InvalidConfiguration, got %v", err)
	}
}

func TestSummarizeEmitsTransitions(t *testing.T) {
	store := newMemStore(map[string]string{"doc.txt": words(15)})

	var mu sync.Mutex
	var global []string
	var local []string

	record := func(dst *[]string) pipeline.ObserverFunc {
		return func(_ context.Context, e pipeline.Event) {
			mu.Lock()
			defer mu.Unlock()

			label := e.State.String()
			if e.State == pipeline.StateSummarizing {
				label = fmt.Sprintf("%s(%d/%d)", label, e.Chunk, e.ChunkCount)
			}
			*dst = append(*dst, label)
		}
	}

	p := newPipeline(t, store, &recordingSummarizer{}, defaultConfig(10), pipeline.WithObserver(record(&global)))

	if _, err := p.Summarize(context.Background(), "doc.txt", record(&local)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"extracting",
		"tokenizing",
		"chunking",
		"summarizing(1/2)",
		"summarizing(2/2)",
		"aggregating",
		"done",
	}

	if !slices.Equal(global, want) || !slices.Equal(local, want) {
		t.Fatalf("unexpected transitions:\nglobal %v\nlocal  %v\nwant   %v", global, local, want)
	}
}

func TestSummarizeFailedEventCarriesError(t *testing.T) {
	var failed pipeline.Event

	p := newPipeline(t, newMemStore(nil), &recordingSummarizer{}, defaultConfig(10))

	_, _ = p.Summarize(context.Background(), "missing.pdf", pipeline.ObserverFunc(func(_ context.Context, e pipeline.Event) {
		if e.State == pipeline.StateFailed {
			failed = e
		}
	}))

	if !domain.IsKind(failed.Err, domain.KindDocumentNotFound) {
		t.Fatalf("expected failed event with DocumentNotFound, got %+v", failed)
	}
}

func TestSummarizeTimeoutBoundsOneCall(t *testing.T) {
	store := newMemStore(map[string]string{"doc.txt": words(20)})
	stub := &recordingSummarizer{
		hook: func(ctx context.Context, _ int) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	cfg := defaultConfig(10)
	cfg.SummarizeTimeout = 10 * time.Millisecond
	p := newPipeline(t, store, stub, cfg)

	_, err := p.Summarize(context.Background(), "doc.txt")
	if !domain.IsKind(err, domain.KindSummarizationFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected SummarizationFailure caused by deadline, got %v", err)
	}

	if stub.callCount() != 1 {
		t.Fatalf("expected a single call before failing, got %d", stub.callCount())
	}
}

func TestSummarizeCancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore(map[string]string{"doc.txt": words(30)})
	stub := &recordingSummarizer{
		hook: func(_ context.Context, call int) error {
			if call == 1 {
				cancel()
			}
			return nil
		},
	}
	p := newPipeline(t, store, stub, defaultConfig(10))

	_, err := p.Summarize(ctx, "doc.txt")

	var e *domain.Error
	if !errors.As(err, &e) || e.Kind != domain.KindSummarizationFailure || e.ChunkIndex != 2 {
		t.Fatalf("expected SummarizationFailure at chunk 2, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation cause, got %v", err)
	}
	if stub.callCount() != 1 {
		t.Fatalf("expected one summarizer call, got %d", stub.callCount())
	}
}

// specialTokenizer wraps wordTokenizer with begin (0) and end (1) tokens that
// decode to nothing.
type specialTokenizer struct {
	words *wordTokenizer
}

func (s *specialTokenizer) Tokenize(text string) ([]int, error) {
	if text == "" {
		return nil, nil
	}

	ids, err := s.words.Tokenize(text)
	if err != nil {
		return nil, err
	}

	tokens := []int{0}
	for _, id := range ids {
		tokens = append(tokens, id+2)
	}
	return append(tokens, 1), nil
}

func (s *specialTokenizer) Decode(ids []int) string {
	var kept []int
	for _, id := range ids {
		if id > 1 {
			kept = append(kept, id-2)
		}
	}
	return s.words.Decode(kept)
}

func (s *specialTokenizer) MaxInputLength() int {
	return 1024
}

func TestSummarizeSkipsSpecialTokenOnlyWindow(t *testing.T) {
	store := newMemStore(map[string]string{"short.txt": "hello world"})
	stub := &recordingSummarizer{}
	tok := &specialTokenizer{words: newWordTokenizer()}

	p, err := pipeline.New(store, extract.New(slog.Default()), tok, stub, defaultConfig(3), slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := p.Summarize(context.Background(), "short.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Tokens are [<s> hello world </s>]: the second window holds only </s>.
	if res.ChunkCount != 2 || res.TokenCount != 4 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	if stub.callCount() != 1 {
		t.Fatalf("expected 1 model call, got %d", stub.callCount())
	}

	if res.Summary != "S1(2 words)." {
		t.Fatalf("unexpected summary: %q", res.Summary)
	}
}
