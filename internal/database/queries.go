package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"docsum/internal/domain"

	"github.com/google/uuid"
)

func (d *Database) UpsertDocument(
	ctx context.Context,
	name string,
	size int64,
	userID int64,
	storedAt time.Time,
) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("document name is empty")
	}

	_, ext := domain.FormatFromName(name)

	var user sql.NullInt64
	if userID != 0 {
		user = sql.NullInt64{Int64: userID, Valid: true}
	}

	query := `insert into documents (name, extension, size, user_id, stored_at)
	values (?, ?, ?, ?, ?)
	on conflict (name) do update
	set extension = excluded.extension,
	size = excluded.size,
	user_id = excluded.user_id,
	stored_at = excluded.stored_at`

	_, err := d.db.ExecContext(ctx, query, name, ext, size, user, storedAt.UTC())

	return err
}

func (d *Database) DeleteDocument(ctx context.Context, name string) error {
	query := "delete from documents where name = ?"

	_, err := d.db.ExecContext(ctx, query, strings.TrimSpace(name))

	return err
}

// StaleDocuments returns names of documents stored before the given time.
func (d *Database) StaleDocuments(ctx context.Context, before time.Time) ([]string, error) {
	query := "select name from documents where stored_at < ? order by stored_at"

	rows, err := d.db.QueryContext(ctx, query, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"before", before,
				"operation", "StaleDocuments")
		}
	}()

	var names []string
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		names = append(names, name)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return names, nil
}

func (d *Database) StartRun(ctx context.Context, documentName string, startedAt time.Time) (string, error) {
	id := uuid.NewString()

	query := `insert into runs (id, document_name, status, started_at)
	values (?, ?, ?, ?)`

	_, err := d.db.ExecContext(ctx, query, id, strings.TrimSpace(documentName), domain.RunStatusRunning, startedAt.UTC())
	if err != nil {
		return "", err
	}

	return id, nil
}

func (d *Database) FinishRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run ID is empty")
	}

	query := `update runs
	set status = ?, failure_kind = ?, message = ?, chunk_count = ?, token_count = ?, finished_at = ?
	where id = ?`

	res, err := d.db.ExecContext(ctx, query,
		run.Status,
		run.FailureKind,
		run.Message,
		run.ChunkCount,
		run.TokenCount,
		run.FinishedAt.UTC(),
		run.ID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run is not found (ID = %s)", run.ID)
	}

	return nil
}

func (d *Database) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `select id, document_name, status, failure_kind, message, chunk_count, token_count, started_at, finished_at
	from runs
	order by started_at desc, rowid desc
	limit ?`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"limit", limit,
				"operation", "RecentRuns")
		}
	}()

	var runs []domain.Run
	for rows.Next() {
		var (
			r        domain.Run
			status   string
			finished sql.NullTime
		)

		if err = rows.Scan(
			&r.ID,
			&r.DocumentName,
			&status,
			&r.FailureKind,
			&r.Message,
			&r.ChunkCount,
			&r.TokenCount,
			&r.StartedAt,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		r.Status = domain.RunStatus(status)
		if finished.Valid {
			r.FinishedAt = finished.Time
		}

		runs = append(runs, r)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}
