package database

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// PO amounts are emitted as JSON numbers, matching the API contract.
	decimal.MarshalJSONWithoutQuotes = true
}

// Provider identifiers stored in accounts.provider_id.
const (
	ProviderCredential = "credential"
	ProviderGoogle     = "google"
)

// PO history statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Quota defaults applied when a user has no quota row yet.
const (
	DefaultPlan         = "starter"
	DefaultMonthlyQuota = 10
)

// ValidStatus reports whether s is a known PO history status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// MaxAmount is the largest value po_history.amount (NUMERIC(12, 2)) holds.
var MaxAmount = decimal.New(999999999999, -2)

// ValidAmount reports whether d, once rounded to cents, is a positive amount
// that fits the amount column.
func ValidAmount(d decimal.Decimal) bool {
	d = d.Round(2)
	return d.IsPositive() && d.LessThanOrEqual(MaxAmount)
}

// User is an account holder.
type User struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Email         string    `db:"email" json:"email"`
	EmailVerified bool      `db:"email_verified" json:"emailVerified"`
	Image         *string   `db:"image" json:"image"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// Session is a login session. Only the SHA-256 hash of the token is stored.
type Session struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	IPAddress *string   `db:"ip_address" json:"ipAddress"`
	UserAgent *string   `db:"user_agent" json:"userAgent"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Account links a user to a credential provider.
type Account struct {
	ID           string    `db:"id" json:"id"`
	AccountID    string    `db:"account_id" json:"accountId"`
	ProviderID   string    `db:"provider_id" json:"providerId"`
	UserID       string    `db:"user_id" json:"userId"`
	AccessToken  *string   `db:"access_token" json:"-"`
	RefreshToken *string   `db:"refresh_token" json:"-"`
	Scope        *string   `db:"scope" json:"scope"`
	Password     *string   `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Verification is a short-lived single-use value keyed by identifier.
type Verification struct {
	ID         string    `db:"id" json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	Value      string    `db:"value" json:"value"`
	ExpiresAt  time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Client is a customer record owned by a user.
type Client struct {
	ID        int64     `db:"id" json:"id"`
	ClientID  string    `db:"client_id" json:"clientId"`
	UserID    string    `db:"user_id" json:"userId"`
	Name      string    `db:"name" json:"name"`
	Company   *string   `db:"company" json:"company"`
	Email     *string   `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ClientUpdate carries the fields of a partial client update. A nil outer
// pointer leaves the column unchanged; a nil inner value clears it.
type ClientUpdate struct {
	Name    *string
	Company **string
	Email   **string
	Phone   **string
}

// UserQuota is the per-user credit counter.
type UserQuota struct {
	ID               int64     `db:"id" json:"id"`
	UserID           string    `db:"user_id" json:"userId"`
	Plan             string    `db:"plan" json:"plan"`
	MonthlyQuota     int       `db:"monthly_quota" json:"monthlyQuota"`
	RemainingCredits int       `db:"remaining_credits" json:"remainingCredits"`
	MonthlyCredits   int       `db:"monthly_credits" json:"monthlyCredits"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// QuotaUpdate carries optional counter values for an upsert.
type QuotaUpdate struct {
	MonthlyQuota     *int
	RemainingCredits *int
	MonthlyCredits   *int
}

// POHistory is a processed purchase order.
type POHistory struct {
	ID          int64           `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"userId"`
	PONumber    string          `db:"po_number" json:"poNumber"`
	Description *string         `db:"description" json:"description"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// POUpdate carries the fields of a partial PO history update.
type POUpdate struct {
	PONumber    *string
	Description **string
	Amount      *decimal.Decimal
	Status      *string
}

// POStats aggregates a user's PO history.
type POStats struct {
	Total           int             `db:"total" json:"total"`
	Completed       int             `db:"completed" json:"completed"`
	CompletedAmount decimal.Decimal `db:"completed_amount" json:"completedAmount"`
}

// GoogleIntegration stores a user's Google OAuth token pair. Tokens never
// leave the service in API responses.
type GoogleIntegration struct {
	ID           int64     `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	GoogleEmail  *string   `db:"google_email" json:"googleEmail"`
	IsActive     bool      `db:"is_active" json:"isActive"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// ListOptions controls pagination and search of list queries.
type ListOptions struct {
	Limit  int
	Offset int
	Search string
}
