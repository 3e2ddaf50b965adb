package database

import "context"

// RepositoryInterface is the persistence surface used by the services and handlers.
type RepositoryInterface interface {
	Ping(ctx context.Context) error

	// Users and credentials
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUserProfile(ctx context.Context, id string, name, image *string) (*User, error)
	CreateAccount(ctx context.Context, account *Account) error
	GetAccountByProvider(ctx context.Context, userID, providerID string) (*Account, error)

	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateSessionActivity(ctx context.Context, sessionID string) error
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Verifications
	CreateVerification(ctx context.Context, v *Verification) error
	ConsumeVerification(ctx context.Context, identifier string) (*Verification, error)
	DeleteExpiredVerifications(ctx context.Context) (int64, error)

	// Clients
	ListClients(ctx context.Context, userID string, opts ListOptions) ([]Client, error)
	GetClient(ctx context.Context, userID string, id int64) (*Client, error)
	CreateClient(ctx context.Context, client *Client) error
	UpdateClient(ctx context.Context, userID string, id int64, update ClientUpdate) (*Client, error)
	DeleteClient(ctx context.Context, userID string, id int64) (*Client, error)

	// PO history
	ListPOHistory(ctx context.Context, userID string, opts ListOptions) ([]POHistory, error)
	GetPOHistory(ctx context.Context, userID string, id int64) (*POHistory, error)
	CreatePOHistory(ctx context.Context, record *POHistory) error
	UpdatePOHistory(ctx context.Context, userID string, id int64, update POUpdate) (*POHistory, error)
	DeletePOHistory(ctx context.Context, userID string, id int64) (*POHistory, error)
	GetPOStats(ctx context.Context, userID string) (*POStats, error)

	// Quotas
	GetOrCreateQuota(ctx context.Context, userID string) (*UserQuota, error)
	UpsertQuota(ctx context.Context, userID string, update QuotaUpdate) (*UserQuota, bool, error)
	SetQuotaPlan(ctx context.Context, userID, plan string, credits int) (*UserQuota, error)
	RecordProcessedPO(ctx context.Context, record *POHistory) (*UserQuota, error)
	ResetMonthlyCredits(ctx context.Context) (int64, error)

	// Google integrations
	GetGoogleIntegration(ctx context.Context, userID string) (*GoogleIntegration, error)
	UpsertGoogleIntegration(ctx context.Context, integration *GoogleIntegration) (bool, error)
	DeleteGoogleIntegration(ctx context.Context, userID string) error
}
