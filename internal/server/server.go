package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"docsum/internal/domain"
	"docsum/internal/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
	// Multipart framing allowance on top of the file size limit.
	multipartOverhead = 1 << 20
)

type DocumentStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

type DocumentIndex interface {
	UpsertDocument(ctx context.Context, name string, size int64, userID int64, storedAt time.Time) error
}

type DocumentSummarizer interface {
	Summarize(ctx context.Context, name string, observers ...pipeline.Observer) (pipeline.Result, error)
}

type Server struct {
	store          DocumentStore
	index          DocumentIndex
	summarizer     DocumentSummarizer
	maxUploadBytes int64
	now            func() time.Time
	log            *slog.Logger
}

func New(
	store DocumentStore,
	index DocumentIndex,
	summarizer DocumentSummarizer,
	maxUploadBytes int64,
	log *slog.Logger,
) *Server {
	return &Server{
		store:          store,
		index:          index,
		summarizer:     summarizer,
		maxUploadBytes: maxUploadBytes,
		now:            time.Now,
		log:            log,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /summarize", s.handleSummarize)

	return withCORS(mux)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("API is running."))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr), strings.Contains(err.Error(), "request body too large"):
			s.writeMessage(w, http.StatusRequestEntityTooLarge, "File is too large")
		case r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0:
			// A file part without a file name is parsed as a plain value.
			s.writeMessage(w, http.StatusBadRequest, "No selected file")
		default:
			s.writeMessage(w, http.StatusBadRequest, "No file part")
		}
		return
	}
	defer func() {
		if err = file.Close(); err != nil {
			s.log.ErrorContext(ctx, "Failed to close uploaded file",
				"error", err,
				"fileName", header.Filename)
		}
	}()

	if strings.TrimSpace(header.Filename) == "" {
		s.writeMessage(w, http.StatusBadRequest, "No selected file")
		return
	}

	if header.Size > s.maxUploadBytes {
		s.writeMessage(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}

	name, err := s.store.Save(ctx, header.Filename, file)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to upload file",
			"error", err,
			"fileName", header.Filename,
			"size", header.Size)

		s.writeMessage(w, http.StatusInternalServerError, "Failed to upload file: "+err.Error())
		return
	}

	if err = s.index.UpsertDocument(ctx, name, header.Size, 0, s.now()); err != nil {
		s.log.ErrorContext(ctx, "Failed to record document",
			"error", err,
			"fileName", name)
	}

	s.log.InfoContext(ctx, "File is uploaded",
		"fileName", name,
		"size", header.Size)

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "File uploaded successfully",
		FileName: name,
	})
}

type uploadResponse struct {
	Message  string `json:"message"`
	FileName string `json:"fileName"`
}

type summarizeRequest struct {
	FileName string `json:"fileName"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type errorResponse struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req summarizeRequest
	if r.Body != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}

	name := strings.TrimSpace(req.FileName)
	if name == "" {
		s.writeMessage(w, http.StatusBadRequest, "No file name provided")
		return
	}

	res, err := s.summarizer.Summarize(ctx, name)
	if err != nil {
		status, message := failureStatus(err)

		s.log.ErrorContext(ctx, "Failed to summarize document",
			"error", err,
			"fileName", name,
			"status", status)

		writeJSON(w, status, errorResponse{
			Message: message,
			Kind:    string(domain.KindOf(err)),
		})
		return
	}

	writeJSON(w, http.StatusOK, summarizeResponse{Summary: res.Summary})
}

// failureStatus maps a pipeline failure to the HTTP status and message.
func failureStatus(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindDocumentNotFound:
		return http.StatusNotFound, "File does not exist"
	case domain.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType, err.Error()
	case domain.KindExtractionFailure:
		return http.StatusUnprocessableEntity, err.Error()
	case domain.KindSummarizationFailure:
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
