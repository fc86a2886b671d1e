package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"docsum/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	HourlyRetentionSpec   = "0 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	cleanupTimeout        = 15 * time.Minute
)

type DocumentStore interface {
	List(ctx context.Context) ([]domain.StoredDocument, error)
	Delete(ctx context.Context, name string) error
}

type DocumentIndex interface {
	StaleDocuments(ctx context.Context, before time.Time) ([]string, error)
	DeleteDocument(ctx context.Context, name string) error
}

type Scheduler struct {
	ctx       context.Context
	cron      *cron.Cron
	store     DocumentStore
	index     DocumentIndex
	retention time.Duration
	now       func() time.Time
	log       *slog.Logger
}

func New(
	ctx context.Context,
	store DocumentStore,
	index DocumentIndex,
	retention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:       ctx,
		cron:      c,
		store:     store,
		index:     index,
		retention: retention,
		now:       time.Now,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(HourlyRetentionSpec, s.runCleanup); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running cleanup to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(s.ctx, cleanupTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	deleted, err := s.Cleanup(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to clean up documents",
			"error", err,
			"retention", s.retention.String(),
			"deletedCount", len(deleted))
		return
	}

	if len(deleted) > 0 {
		s.log.InfoContext(ctx, "Documents are cleaned up",
			"retention", s.retention.String(),
			"deleted", deleted)
	}
}

// Cleanup deletes documents older than the retention period from storage and
// the index. A document is stale when either its stored object or its index
// row is older than the cutoff. Returns the deleted names in order.
func (s *Scheduler) Cleanup(ctx context.Context) ([]string, error) {
	if s.retention <= 0 {
		return nil, nil
	}

	cutoff := s.now().Add(-s.retention)

	stored, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored documents: %w", err)
	}

	indexed, err := s.index.StaleDocuments(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("fetch stale documents: %w", err)
	}

	present := make(map[string]bool, len(stored))
	stale := make(map[string]struct{})

	for _, doc := range stored {
		present[doc.Name] = true
		if doc.Modified.Before(cutoff) {
			stale[doc.Name] = struct{}{}
		}
	}
	for _, name := range indexed {
		stale[name] = struct{}{}
	}

	names := make([]string, 0, len(stale))
	for name := range stale {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		deleted []string
		errs    []error
	)

	for _, name := range names {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		if present[name] {
			if err = s.store.Delete(ctx, name); err != nil {
				errs = append(errs, fmt.Errorf("delete stored document (name = %s): %w", name, err))
				continue
			}
		}

		if err = s.index.DeleteDocument(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("delete indexed document (name = %s): %w", name, err))
			continue
		}

		deleted = append(deleted, name)
	}

	return deleted, errors.Join(errs...)
}
