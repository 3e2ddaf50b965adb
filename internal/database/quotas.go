package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const quotaColumns = `id, user_id, plan, monthly_quota, remaining_credits, monthly_credits, created_at, updated_at`

type upsertedQuota struct {
	UserQuota
	Inserted bool `db:"inserted"`
}

// GetOrCreateQuota returns the user's quota, creating the default row first when absent.
func (r *Repository) GetOrCreateQuota(ctx context.Context, userID string) (*UserQuota, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	now := r.now()
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO user_quotas (user_id, plan, monthly_quota, remaining_credits, monthly_credits, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $3, $4, $4)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, DefaultPlan, DefaultMonthlyQuota, now); err != nil {
		return nil, wrap(err, "user_quota", userID, "create")
	}

	var q UserQuota
	if err := r.db.GetContext(ctx, &q, `SELECT `+quotaColumns+` FROM user_quotas WHERE user_id = $1`, userID); err != nil {
		return nil, wrap(err, "user_quota", userID, "get")
	}
	return &q, nil
}

// UpsertQuota writes the provided counters, creating the row with defaults for
// absent ones. The bool result reports whether a row was inserted.
func (r *Repository) UpsertQuota(ctx context.Context, userID string, update QuotaUpdate) (*UserQuota, bool, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, false, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var q upsertedQuota
	err := r.db.GetContext(ctx, &q, `
		INSERT INTO user_quotas AS q (user_id, plan, monthly_quota, remaining_credits, monthly_credits, created_at, updated_at)
		VALUES ($1, $2, COALESCE($3::integer, $7), COALESCE($4::integer, $7), COALESCE($5::integer, $7), $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			monthly_quota = COALESCE($3::integer, q.monthly_quota),
			remaining_credits = COALESCE($4::integer, q.remaining_credits),
			monthly_credits = COALESCE($5::integer, q.monthly_credits),
			updated_at = $6
		RETURNING `+quotaColumns+`, (xmax = 0) AS inserted`,
		userID, DefaultPlan, update.MonthlyQuota, update.RemainingCredits, update.MonthlyCredits, r.now(), DefaultMonthlyQuota)
	if err != nil {
		return nil, false, wrap(err, "user_quota", userID, "upsert")
	}
	return &q.UserQuota, q.Inserted, nil
}

// SetQuotaPlan moves the user to plan. Remaining credits shift by the change
// in monthly credits and never drop below zero.
func (r *Repository) SetQuotaPlan(ctx context.Context, userID, plan string, credits int) (*UserQuota, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	if credits < 0 {
		return nil, fmt.Errorf("%w: credits cannot be negative", ErrInvalidInput)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var q UserQuota
	err := r.db.GetContext(ctx, &q, `
		UPDATE user_quotas SET
			plan = $2,
			monthly_quota = $3,
			monthly_credits = $3,
			remaining_credits = GREATEST(remaining_credits + ($3 - monthly_credits), 0),
			updated_at = $4
		WHERE user_id = $1
		RETURNING `+quotaColumns, userID, plan, credits, r.now())
	if err != nil {
		return nil, wrap(err, "user_quota", userID, "set plan")
	}
	return &q, nil
}

// RecordProcessedPO spends one credit and stores record in one transaction.
// It fails with ErrInsufficientCredits, storing nothing, when no credit is left.
func (r *Repository) RecordProcessedPO(ctx context.Context, record *POHistory) (*UserQuota, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: record cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(record.UserID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrap(err, "user_quota", record.UserID, "begin")
	}
	defer tx.Rollback()

	var q UserQuota
	err = tx.GetContext(ctx, &q, `
		UPDATE user_quotas
		SET remaining_credits = remaining_credits - 1, updated_at = $2
		WHERE user_id = $1 AND remaining_credits > 0
		RETURNING `+quotaColumns, record.UserID, r.now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsufficientCredits
	}
	if err != nil {
		return nil, wrap(err, "user_quota", record.UserID, "consume")
	}

	if err := r.insertPO(ctx, tx, record); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, wrap(err, "user_quota", record.UserID, "commit")
	}
	return &q, nil
}

// ResetMonthlyCredits restores every quota's remaining credits to its monthly allowance.
func (r *Repository) ResetMonthlyCredits(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE user_quotas
		SET remaining_credits = monthly_credits, updated_at = $1
		WHERE remaining_credits <> monthly_credits`, r.now())
	if err != nil {
		return 0, wrap(err, "user_quota", "all", "reset")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
