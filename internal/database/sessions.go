package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const sessionColumns = `id, token_hash, user_id, expires_at, ip_address, user_agent, created_at, updated_at`

// CreateSession stores a new session.
func (r *Repository) CreateSession(ctx context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("%w: session cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(session.UserID); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := r.now()
	session.CreatedAt, session.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.TokenHash, session.UserID, session.ExpiresAt,
		session.IPAddress, session.UserAgent, session.CreatedAt, session.UpdatedAt)
	return wrap(err, "session", session.ID, "create")
}

// GetSessionByTokenHash returns the unexpired session for tokenHash.
func (r *Repository) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	if tokenHash == "" {
		return nil, fmt.Errorf("%w: token hash cannot be empty", ErrInvalidInput)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var s Session
	err := r.db.GetContext(ctx, &s, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2`, tokenHash, r.now())
	if err != nil {
		return nil, wrap(err, "session", "token", "get")
	}
	return &s, nil
}

// UpdateSessionActivity bumps the session's updated_at.
func (r *Repository) UpdateSessionActivity(ctx context.Context, sessionID string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET updated_at = $2 WHERE id = $1`, sessionID, r.now())
	return wrap(err, "session", sessionID, "update")
}

// DeleteSession removes the session for tokenHash. Missing sessions are not an error.
func (r *Repository) DeleteSession(ctx context.Context, tokenHash string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return wrap(err, "session", "token", "delete")
}

// DeleteExpiredSessions purges expired sessions and returns how many were removed.
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, wrap(err, "session", "expired", "delete")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CreateVerification stores a single-use value.
func (r *Repository) CreateVerification(ctx context.Context, v *Verification) error {
	if v == nil || v.Identifier == "" {
		return fmt.Errorf("%w: verification identifier cannot be empty", ErrInvalidInput)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := r.now()
	v.CreatedAt, v.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verifications (id, identifier, value, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		v.ID, v.Identifier, v.Value, v.ExpiresAt, v.CreatedAt, v.UpdatedAt)
	return wrap(err, "verification", v.Identifier, "create")
}

// ConsumeVerification deletes and returns the unexpired value for identifier.
// A second call for the same identifier yields ErrNotFound.
func (r *Repository) ConsumeVerification(ctx context.Context, identifier string) (*Verification, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var v Verification
	err := r.db.GetContext(ctx, &v, `
		DELETE FROM verifications
		WHERE identifier = $1 AND expires_at > $2
		RETURNING id, identifier, value, expires_at, created_at, updated_at`, identifier, r.now())
	if err != nil {
		return nil, wrap(err, "verification", identifier, "consume")
	}
	return &v, nil
}

// DeleteExpiredVerifications purges verification values past their expiry.
func (r *Repository) DeleteExpiredVerifications(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM verifications WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, wrap(err, "verification", "expired", "delete")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
