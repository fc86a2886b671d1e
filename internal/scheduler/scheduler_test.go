package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"docsum/internal/domain"
)

type stubStore struct {
	docs      []domain.StoredDocument
	failOn    string
	deleted   []string
	listCalls int
}

func (s *stubStore) List(context.Context) ([]domain.StoredDocument, error) {
	s.listCalls++
	return s.docs, nil
}

func (s *stubStore) Delete(_ context.Context, name string) error {
	if name == s.failOn {
		return errors.New("delete failed")
	}
	s.deleted = append(s.deleted, name)
	return nil
}

type stubIndex struct {
	stale   []string
	before  time.Time
	deleted []string
}

func (i *stubIndex) StaleDocuments(_ context.Context, before time.Time) ([]string, error) {
	i.before = before
	return i.stale, nil
}

func (i *stubIndex) DeleteDocument(_ context.Context, name string) error {
	i.deleted = append(i.deleted, name)
	return nil
}

func newTestScheduler(store *stubStore, index *stubIndex, retention time.Duration, now time.Time) *Scheduler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(context.Background(), store, index, retention, log)
	s.now = func() time.Time { return now }
	return s
}

func TestCleanupDeletesStaleDocuments(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	store := &stubStore{docs: []domain.StoredDocument{
		{Name: "old.pdf", Modified: now.Add(-80 * time.Hour)},
		{Name: "fresh.txt", Modified: now.Add(-time.Hour)},
		{Name: "indexed-old.docx", Modified: now.Add(-time.Hour)},
	}}
	index := &stubIndex{stale: []string{"indexed-old.docx", "gone.txt"}}

	s := newTestScheduler(store, index, 72*time.Hour, now)

	deleted, err := s.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup returned error: %v", err)
	}

	want := []string{"gone.txt", "indexed-old.docx", "old.pdf"}
	if !reflect.DeepEqual(deleted, want) {
		t.Fatalf("deleted = %v, want %v", deleted, want)
	}

	if !reflect.DeepEqual(store.deleted, []string{"indexed-old.docx", "old.pdf"}) {
		t.Fatalf("unexpected storage deletes: %v", store.deleted)
	}

	if !reflect.DeepEqual(index.deleted, want) {
		t.Fatalf("unexpected index deletes: %v", index.deleted)
	}

	if !index.before.Equal(now.Add(-72 * time.Hour)) {
		t.Fatalf("unexpected cutoff: %v", index.before)
	}
}

func TestCleanupKeepsIndexRowWhenStorageDeleteFails(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	store := &stubStore{
		docs: []domain.StoredDocument{
			{Name: "a.txt", Modified: now.Add(-100 * time.Hour)},
			{Name: "b.txt", Modified: now.Add(-100 * time.Hour)},
		},
		failOn: "a.txt",
	}
	index := &stubIndex{}

	s := newTestScheduler(store, index, time.Hour, now)

	deleted, err := s.Cleanup(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}

	if !reflect.DeepEqual(deleted, []string{"b.txt"}) {
		t.Fatalf("unexpected deleted: %v", deleted)
	}
	if !reflect.DeepEqual(index.deleted, []string{"b.txt"}) {
		t.Fatalf("unexpected index deletes: %v", index.deleted)
	}
}

func TestCleanupDisabledRetention(t *testing.T) {
	store := &stubStore{}
	s := newTestScheduler(store, &stubIndex{}, 0, time.Now())

	deleted, err := s.Cleanup(context.Background())
	if err != nil || deleted != nil {
		t.Fatalf("expected no-op, got %v, %v", deleted, err)
	}
	if store.listCalls != 0 {
		t.Fatalf("expected storage not to be listed")
	}
}

func TestStartStop(t *testing.T) {
	s := newTestScheduler(&stubStore{}, &stubIndex{}, time.Hour, time.Now())

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if len(s.cron.Entries()) != 1 {
		t.Fatalf("expected one cron entry, got %d", len(s.cron.Entries()))
	}

	s.Stop()
}
