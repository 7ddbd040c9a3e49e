package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists bulk send runs and their per-recipient outcomes.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db.DB}
}

// RecordRun stores a run together with its items in one transaction.
func (r *Repository) RecordRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, sender, group_name, template_name, total, success, failed, delay_ms, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Sender, run.GroupName, run.TemplateName, run.Total, run.Success, run.Failed,
		run.Delay.Milliseconds(), run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	for _, item := range run.Items {
		_, err = tx.Exec(`
			INSERT INTO run_items (run_id, position, recipient, subject, message_id, success, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, item.Position, item.Recipient, item.Subject, item.MessageID, item.Success, item.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to record run item: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its items, or nil when not found.
func (r *Repository) GetRun(id string) (*Run, error) {
	run := &Run{}
	var delayMS int64

	err := r.db.QueryRow(`
		SELECT id, sender, group_name, template_name, total, success, failed, delay_ms, started_at, finished_at
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Sender, &run.GroupName, &run.TemplateName, &run.Total, &run.Success,
		&run.Failed, &delayMS, &run.StartedAt, &run.FinishedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Delay = time.Duration(delayMS) * time.Millisecond

	rows, err := r.db.Query(`
		SELECT position, recipient, subject, message_id, success, error
		FROM run_items WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item RunItem
		if err := rows.Scan(&item.Position, &item.Recipient, &item.Subject, &item.MessageID, &item.Success, &item.Error); err != nil {
			return nil, err
		}
		run.Items = append(run.Items, item)
	}

	return run, rows.Err()
}

// ListRuns returns runs newest first, without items, plus the total count.
func (r *Repository) ListRuns(filter ListFilter) ([]Run, int, error) {
	countQuery := "SELECT COUNT(*) FROM runs WHERE 1=1"
	args := []any{}

	if filter.Sender != "" {
		countQuery += " AND sender = ?"
		args = append(args, filter.Sender)
	}

	var total int
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, sender, group_name, template_name, total, success, failed, delay_ms, started_at, finished_at
		FROM runs WHERE 1=1`

	args = []any{}
	if filter.Sender != "" {
		query += " AND sender = ?"
		args = append(args, filter.Sender)
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var delayMS int64
		err := rows.Scan(&run.ID, &run.Sender, &run.GroupName, &run.TemplateName, &run.Total,
			&run.Success, &run.Failed, &delayMS, &run.StartedAt, &run.FinishedAt)
		if err != nil {
			return nil, 0, err
		}
		run.Delay = time.Duration(delayMS) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, total, rows.Err()
}
