package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const userColumns = `id, name, email, email_verified, image, created_at, updated_at`

// CreateUser inserts user. A duplicate email yields ErrConflict.
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("%w: user cannot be nil", ErrInvalidInput)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.now()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, email_verified, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, user.Name, user.Email, user.EmailVerified, user.Image, user.CreatedAt, user.UpdatedAt)
	return wrap(err, "user", user.Email, "create")
}

// GetUser returns the user with id.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	if err := ValidateUserID(id); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, wrap(err, "user", id, "get")
	}
	return &u, nil
}

// GetUserByEmail looks a user up by normalized email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", ErrInvalidInput)
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, wrap(err, "user", email, "get")
	}
	return &u, nil
}

// UpdateUserProfile sets the provided profile fields. An empty image clears it.
func (r *Repository) UpdateUserProfile(ctx context.Context, id string, name, image *string) (*User, error) {
	if err := ValidateUserID(id); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx, &u, `
		UPDATE users
		SET name = COALESCE($2, name),
		    image = CASE WHEN $3::boolean THEN NULLIF($4, '') ELSE image END,
		    updated_at = $5
		WHERE id = $1
		RETURNING `+userColumns,
		id, name, image != nil, derefOrNil(image), r.now())
	if err != nil {
		return nil, wrap(err, "user", id, "update")
	}
	return &u, nil
}

// CreateAccount links a credential provider to a user.
func (r *Repository) CreateAccount(ctx context.Context, account *Account) error {
	if account == nil {
		return fmt.Errorf("%w: account cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(account.UserID); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := r.now()
	account.CreatedAt, account.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, account_id, provider_id, user_id, access_token, refresh_token, scope, password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		account.ID, account.AccountID, account.ProviderID, account.UserID,
		account.AccessToken, account.RefreshToken, account.Scope, account.Password,
		account.CreatedAt, account.UpdatedAt)
	return wrap(err, "account", account.ProviderID, "create")
}

// GetAccountByProvider returns the user's account for providerID.
func (r *Repository) GetAccountByProvider(ctx context.Context, userID, providerID string) (*Account, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var a Account
	err := r.db.GetContext(ctx, &a, `
		SELECT id, account_id, provider_id, user_id, access_token, refresh_token, scope, password, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND provider_id = $2
		LIMIT 1`, userID, providerID)
	if err != nil {
		return nil, wrap(err, "account", providerID, "get")
	}
	return &a, nil
}

func derefOrNil(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
