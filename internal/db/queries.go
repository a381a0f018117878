package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

// DefaultListLimit bounds ListAttachments when no limit is given.
const DefaultListLimit = 50

// GetSnapshot returns the cached vocabulary for category.
// The bool is false when nothing is cached.
func GetSnapshot(ctx context.Context, db *sql.DB, category string) (resolve.Snapshot, bool, error) {
	query := `SELECT entries_json, fetched_at FROM vocabulary_snapshots WHERE category = ?`

	var (
		entriesJSON string
		fetchedAt   int64
	)
	err := db.QueryRowContext(ctx, query, category).Scan(&entriesJSON, &fetchedAt)
	if err == sql.ErrNoRows {
		return resolve.Snapshot{}, false, nil
	}
	if err != nil {
		return resolve.Snapshot{}, false, errors.NewInternal(err)
	}

	var m resolve.Map
	if err := json.Unmarshal([]byte(entriesJSON), &m); err != nil {
		// A corrupt row is a miss; the next put overwrites it.
		return resolve.Snapshot{}, false, nil
	}
	return resolve.Snapshot{Map: m, FetchedAt: time.Unix(fetchedAt, 0)}, true, nil
}

// PutSnapshot stores (or replaces) the cached vocabulary for category.
func PutSnapshot(ctx context.Context, db *sql.DB, category string, s resolve.Snapshot) error {
	data, err := json.Marshal(s.Map)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO vocabulary_snapshots (category, entries_json, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			entries_json = excluded.entries_json,
			fetched_at = excluded.fetched_at
	`
	if _, err := db.ExecContext(ctx, query, category, string(data), s.FetchedAt.Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeleteSnapshots removes every cached vocabulary and returns how many were removed.
func DeleteSnapshots(ctx context.Context, db *sql.DB) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM vocabulary_snapshots`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// SnapshotStore adapts the vocabulary_snapshots table to resolve.SnapshotStore.
type SnapshotStore struct {
	db *sql.DB
}

// NewSnapshotStore creates a SnapshotStore over an initialized database.
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// GetSnapshot implements resolve.SnapshotStore.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, category string) (resolve.Snapshot, bool, error) {
	return GetSnapshot(ctx, s.db, category)
}

// PutSnapshot implements resolve.SnapshotStore.
func (s *SnapshotStore) PutSnapshot(ctx context.Context, category string, snap resolve.Snapshot) error {
	return PutSnapshot(ctx, s.db, category, snap)
}

// InvalidateSnapshots implements resolve.SnapshotStore.
func (s *SnapshotStore) InvalidateSnapshots(ctx context.Context) error {
	_, err := DeleteSnapshots(ctx, s.db)
	return err
}

// InsertAttachment records a new enrichment job.
func InsertAttachment(ctx context.Context, db *sql.DB, a *ticket.Attachment) error {
	query := `
		INSERT INTO attachment_log (
			id, request_id, card_id, sharing_url, status,
			image_url, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID, a.RequestID, a.CardID, a.SharingURL, string(a.Status),
		toNullString(a.ImageURL), toNullString(a.Reason), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// UpdateAttachment sets the outcome of a recorded job.
// Sets updated_at to current timestamp.
func UpdateAttachment(ctx context.Context, db *sql.DB, a *ticket.Attachment) error {
	now := time.Now().Unix()

	query := `
		UPDATE attachment_log
		SET status = ?, image_url = ?, reason = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := db.ExecContext(ctx, query,
		string(a.Status), toNullString(a.ImageURL), toNullString(a.Reason), now, a.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(a.ID)
	}

	a.UpdatedAt = now
	return nil
}

// GetAttachment retrieves one job by id.
func GetAttachment(ctx context.Context, db *sql.DB, id string) (*ticket.Attachment, error) {
	query := `
		SELECT id, request_id, card_id, sharing_url, status,
			image_url, reason, created_at, updated_at
		FROM attachment_log
		WHERE id = ?
	`
	a, err := scanAttachment(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return a, nil
}

// ListAttachments returns the most recent jobs first. A limit <= 0 means DefaultListLimit.
// cardID, when set, restricts the list to one card.
func ListAttachments(ctx context.Context, db *sql.DB, cardID string, limit int) ([]ticket.Attachment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, request_id, card_id, sharing_url, status,
			image_url, reason, created_at, updated_at
		FROM attachment_log
	`
	args := []any{}
	if cardID != "" {
		query += " WHERE card_id = ?"
		args = append(args, cardID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []ticket.Attachment{}
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanAttachment scans a single row into an Attachment.
func scanAttachment(row scanner) (*ticket.Attachment, error) {
	var (
		a        ticket.Attachment
		status   string
		imageURL sql.NullString
		reason   sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.RequestID, &a.CardID, &a.SharingURL, &status,
		&imageURL, &reason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = ticket.AttachStatus(status)
	a.ImageURL = imageURL.String
	a.Reason = reason.String
	return &a, nil
}

// toNullString stores empty strings as NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
