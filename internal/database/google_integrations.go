package database

import (
	"context"
	"fmt"
	"strings"
)

const integrationColumns = `id, user_id, access_token, refresh_token, google_email, is_active, created_at, updated_at`

type upsertedIntegration struct {
	GoogleIntegration
	Inserted bool `db:"inserted"`
}

// GetGoogleIntegration returns the user's integration record.
func (r *Repository) GetGoogleIntegration(ctx context.Context, userID string) (*GoogleIntegration, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var g GoogleIntegration
	err := r.db.GetContext(ctx, &g, `SELECT `+integrationColumns+` FROM google_integrations WHERE user_id = $1`, userID)
	if err != nil {
		return nil, wrap(err, "google_integration", userID, "get")
	}
	return &g, nil
}

// UpsertGoogleIntegration creates or replaces the user's token pair. The bool
// result reports whether a row was inserted.
func (r *Repository) UpsertGoogleIntegration(ctx context.Context, integration *GoogleIntegration) (bool, error) {
	if integration == nil {
		return false, fmt.Errorf("%w: integration cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(integration.UserID); err != nil {
		return false, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	integration.AccessToken = strings.TrimSpace(integration.AccessToken)
	integration.RefreshToken = strings.TrimSpace(integration.RefreshToken)

	var g upsertedIntegration
	err := r.db.GetContext(ctx, &g, `
		INSERT INTO google_integrations AS g (user_id, access_token, refresh_token, google_email, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			google_email = COALESCE(EXCLUDED.google_email, g.google_email),
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING `+integrationColumns+`, (xmax = 0) AS inserted`,
		integration.UserID, integration.AccessToken, integration.RefreshToken,
		integration.GoogleEmail, integration.IsActive, r.now())
	if err != nil {
		return false, wrap(err, "google_integration", integration.UserID, "upsert")
	}
	*integration = g.GoogleIntegration
	return g.Inserted, nil
}

// DeleteGoogleIntegration removes the user's integration.
func (r *Repository) DeleteGoogleIntegration(ctx context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM google_integrations WHERE user_id = $1`, userID)
	if err != nil {
		return wrap(err, "google_integration", userID, "delete")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NewNotFoundError("google_integration", userID)
	}
	return nil
}
