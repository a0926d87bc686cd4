package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record describes one stored upload.
type Record struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	Columns    int       `json:"columns"`
	Rows       int       `json:"rows"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Archive persists uploaded dataset bytes so the active table survives a
// restart. Exactly one record is active at a time; older uploads are kept
// as history.
type Archive struct {
	db *sql.DB
}

// NewArchive creates an archive backed by an opened database.
func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// Save stores the raw upload and marks it as the active dataset.
func (a *Archive) Save(ctx context.Context, filename string, raw []byte, t *Table) (Record, error) {
	rec := Record{
		ID:         uuid.New().String(),
		Filename:   filename,
		Size:       int64(len(raw)),
		Columns:    len(t.Columns()),
		Rows:       t.Len(),
		UploadedAt: time.Now().UTC(),
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE datasets SET active = 0 WHERE active = 1`); err != nil {
		return Record{}, fmt.Errorf("deactivate previous dataset: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, filename, size, column_count, row_count, data, active, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, 1, ?)`,
		rec.ID, rec.Filename, rec.Size, rec.Columns, rec.Rows, raw, rec.UploadedAt)
	if err != nil {
		return Record{}, fmt.Errorf("insert dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit save: %w", err)
	}
	return rec, nil
}

// Active returns the active upload and its raw bytes, or (nil, nil, nil)
// when nothing has been uploaded yet.
func (a *Archive) Active(ctx context.Context) (*Record, []byte, error) {
	var (
		rec Record
		raw []byte
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT id, filename, size, column_count, row_count, data, uploaded_at
		 FROM datasets WHERE active = 1`).
		Scan(&rec.ID, &rec.Filename, &rec.Size, &rec.Columns, &rec.Rows, &raw, &rec.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load active dataset: %w", err)
	}
	return &rec, raw, nil
}

// History lists stored uploads, newest first.
func (a *Archive) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, filename, size, column_count, row_count, uploaded_at
		 FROM datasets ORDER BY uploaded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Filename, &rec.Size, &rec.Columns, &rec.Rows, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan upload record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
