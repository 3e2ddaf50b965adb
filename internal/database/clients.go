package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const clientColumns = `id, client_id, user_id, name, company, email, phone, created_at, updated_at`

// maxClientIDAttempts bounds retries when two inserts race for the same CLIENT_### id.
const maxClientIDAttempts = 5

var clientIDPattern = regexp.MustCompile(`CLIENT_(\d+)`)

// NextClientID derives the identifier following last. An empty or
// unparsable last id restarts the sequence at CLIENT_001.
func NextClientID(last string) string {
	next := 1
	if m := clientIDPattern.FindStringSubmatch(last); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("CLIENT_%03d", next)
}

// ListClients returns the user's clients, newest first.
func (r *Repository) ListClients(ctx context.Context, userID string, opts ListOptions) ([]Client, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + clientColumns + ` FROM clients WHERE user_id = $1`
	args := []interface{}{userID}
	if s := strings.TrimSpace(opts.Search); s != "" {
		args = append(args, likePattern(s))
		query += ` AND (name ILIKE $2 OR company ILIKE $2 OR email ILIKE $2)`
	}
	args = append(args, opts.Limit, opts.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	clients := []Client{}
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		return nil, wrap(err, "client", userID, "list")
	}
	return clients, nil
}

// GetClient returns the client id when it belongs to userID.
func (r *Repository) GetClient(ctx context.Context, userID string, id int64) (*Client, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var c Client
	err := r.db.GetContext(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return nil, wrap(err, "client", strconv.FormatInt(id, 10), "get")
	}
	return &c, nil
}

// CreateClient assigns the next CLIENT_### id for the owner and inserts client.
func (r *Repository) CreateClient(ctx context.Context, client *Client) error {
	if client == nil {
		return fmt.Errorf("%w: client cannot be nil", ErrInvalidInput)
	}
	if err := ValidateUserID(client.UserID); err != nil {
		return err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	for attempt := 0; attempt < maxClientIDAttempts; attempt++ {
		var last string
		err := r.db.GetContext(ctx, &last, `
			SELECT client_id FROM clients WHERE user_id = $1 ORDER BY id DESC LIMIT 1`, client.UserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return wrap(err, "client", client.UserID, "last")
		}
		client.ClientID = NextClientID(last)

		now := r.now()
		client.CreatedAt, client.UpdatedAt = now, now
		err = r.db.QueryRowxContext(ctx, `
			INSERT INTO clients (client_id, user_id, name, company, email, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			client.ClientID, client.UserID, client.Name, client.Company, client.Email, client.Phone,
			client.CreatedAt, client.UpdatedAt).Scan(&client.ID)
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) && uniqueConstraint(err) == "clients_user_id_client_id_key" {
			continue
		}
		return wrap(err, "client", client.ClientID, "create")
	}
	return fmt.Errorf("%w: could not allocate client id after %d attempts", ErrConflict, maxClientIDAttempts)
}

// UpdateClient applies update to the user's client and returns the new row.
func (r *Repository) UpdateClient(ctx context.Context, userID string, id int64, update ClientUpdate) (*Client, error) {
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
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.Company != nil {
		add("company", *update.Company)
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.Phone != nil {
		add("phone", *update.Phone)
	}

	var c Client
	err := r.db.GetContext(ctx, &c, `
		UPDATE clients SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND user_id = $2
		RETURNING `+clientColumns, args...)
	if err != nil {
		return nil, wrap(err, "client", strconv.FormatInt(id, 10), "update")
	}
	return &c, nil
}

// DeleteClient removes the user's client and returns the deleted row.
func (r *Repository) DeleteClient(ctx context.Context, userID string, id int64) (*Client, error) {
	if err := ValidateUserID(userID); err != nil {
		return nil, err
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var c Client
	err := r.db.GetContext(ctx, &c, `
		DELETE FROM clients WHERE id = $1 AND user_id = $2
		RETURNING `+clientColumns, id, userID)
	if err != nil {
		return nil, wrap(err, "client", strconv.FormatInt(id, 10), "delete")
	}
	return &c, nil
}
