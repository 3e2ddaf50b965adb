package database

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

const poColumns = `id, user_id, po_number, description, amount, status, created_at, updated_at`

// ListPOHistory returns the user's PO history, newest first.
func (r *Repository) ListPOHistory(ctx context.Context, userID string, opts ListOptions) ([]POHistory, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + poColumns + ` FROM po_history WHERE user_id = $1`
	args := []interface{}{userID}
	if s := strings.TrimSpace(opts.Search); s != "" {
		args = append(args, likePattern(s))
		query += ` AND (po_number ILIKE $2 OR description ILIKE $2)`
	}
	args = append(args, opts.Limit, opts.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	records := []POHistory{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, wrap(err, "po_history", userID, "list")
	}
	return records, nil
}

// GetPOHistory returns record id when it belongs to userID.
func (r *Repository) GetPOHistory(ctx context.Context, userID string, id int64) (*POHistory, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var p POHistory
	err := r.db.GetContext(ctx, &p, `SELECT `+poColumns+` FROM po_history WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, wrap(err, "po_history", strconv.FormatInt(id, 10), "get")
	}
	return &p, nil
}

// CreatePOHistory inserts record.
func (r *Repository) CreatePOHistory(ctx context.Context, record *POHistory) error {
	if record == nil {
		return fmt.Errorf("%w: record cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(record.UserID); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	return r.insertPO(ctx, r.db, record)
}

// rowQuerier is satisfied by *sqlx.DB and *sqlx.Tx.
type rowQuerier interface {
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
}

func (r *Repository) insertPO(ctx context.Context, q rowQuerier, record *POHistory) error {
	if record.Status == "" {
		record.Status = StatusCompleted
	}
	now := r.now()
	record.CreatedAt, record.UpdatedAt = now, now
	err := q.QueryRowxContext(ctx, `
		INSERT INTO po_history (user_id, po_number, description, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		record.UserID, record.PONumber, record.Description, record.Amount, record.Status,
		record.CreatedAt, record.UpdatedAt).Scan(&record.ID)
	return wrap(err, "po_history", record.PONumber, "create")
}

// UpdatePOHistory applies update to the user's record.
func (r *Repository) UpdatePOHistory(ctx context.Context, userID string, id int64, update POUpdate) (*POHistory, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	sets := []string{"updated_at = $3"}
	args := []interface{}{id, userID, r.now()}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if update.PONumber != nil {
		add("po_number", *update.PONumber)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Amount != nil {
		add("amount", *update.Amount)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}

	var p POHistory
	err := r.db.GetContext(ctx, &p, `
		UPDATE po_history SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND user_id = $2
		RETURNING `+poColumns, args...)
	if err != nil {
		return nil, wrap(err, "po_history", strconv.FormatInt(id, 10), "update")
	}
	return &p, nil
}

// DeletePOHistory removes the user's record and returns it.
func (r *Repository) DeletePOHistory(ctx context.Context, userID string, id int64) (*POHistory, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var p POHistory
	err := r.db.GetContext(ctx, &p, `
		DELETE FROM po_history WHERE id = $1 AND user_id = $2
		RETURNING `+poColumns, id, userID)
	if err != nil {
		return nil, wrap(err, "po_history", strconv.FormatInt(id, 10), "delete")
	}
	return &p, nil
}

// GetPOStats aggregates the user's PO history.
func (r *Repository) GetPOStats(ctx context.Context, userID string) (*POStats, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var s POStats
	err := r.db.GetContext(ctx, &s, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		       COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0) AS completed_amount
		FROM po_history
		WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap(err, "po_history", userID, "stats")
	}
	return &s, nil
}
