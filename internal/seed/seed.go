// Package seed loads development fixtures into the database.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

//go:embed fixtures/default.yaml
var defaultFixtures []byte

// Fixtures is the YAML seed document.
type Fixtures struct {
	Users              []UserFixture        `yaml:"users"`
	Clients            []ClientFixture      `yaml:"clients"`
	POHistory          []POFixture          `yaml:"poHistory"`
	UserQuotas         []QuotaFixture       `yaml:"userQuotas"`
	GoogleIntegrations []IntegrationFixture `yaml:"googleIntegrations"`
}

type UserFixture struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type ClientFixture struct {
	UserID  string  `yaml:"userId"`
	Name    string  `yaml:"name"`
	Company *string `yaml:"company"`
	Email   *string `yaml:"email"`
	Phone   *string `yaml:"phone"`
}

type POFixture struct {
	UserID      string          `yaml:"userId"`
	PONumber    string          `yaml:"poNumber"`
	Description *string         `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
	Status      string          `yaml:"status"`
}

type QuotaFixture struct {
	UserID           string `yaml:"userId"`
	MonthlyQuota     *int   `yaml:"monthlyQuota"`
	RemainingCredits *int   `yaml:"remainingCredits"`
	MonthlyCredits   *int   `yaml:"monthlyCredits"`
}

type IntegrationFixture struct {
	UserID       string `yaml:"userId"`
	AccessToken  string `yaml:"accessToken"`
	RefreshToken string `yaml:"refreshToken"`
	IsActive     bool   `yaml:"isActive"`
}

// Summary counts the rows written by Apply.
type Summary struct {
	Users        int
	Clients      int
	POHistory    int
	Quotas       int
	Integrations int
}

// Default returns the embedded fixtures.
func Default() (*Fixtures, error) {
	return Parse(defaultFixtures)
}

// LoadFile reads fixtures from path.
func LoadFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a fixture document.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks references and field values.
func (f *Fixtures) Validate() error {
	users := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		if u.ID == "" || u.Email == "" || u.Name == "" {
			return fmt.Errorf("users[%d]: id, name and email are required", i)
		}
		if u.Password != "" {
			if err := auth.ValidatePassword(u.Password); err != nil {
				return fmt.Errorf("users[%d]: %w", i, err)
			}
		}
		users[u.ID] = true
	}
	owner := func(section string, i int, userID string) error {
		if !users[userID] {
			return fmt.Errorf("%s[%d]: unknown user %q", section, i, userID)
		}
		return nil
	}
	for i, c := range f.Clients {
		if err := owner("clients", i, c.UserID); err != nil {
			return err
		}
		if c.Name == "" {
			return fmt.Errorf("clients[%d]: name is required", i)
		}
	}
	for i, p := range f.POHistory {
		if err := owner("poHistory", i, p.UserID); err != nil {
			return err
		}
		if p.PONumber == "" || !database.ValidAmount(p.Amount) {
			return fmt.Errorf("poHistory[%d]: poNumber and a positive amount up to %s are required", i, database.MaxAmount)
		}
		if p.Status != "" && !database.ValidStatus(p.Status) {
			return fmt.Errorf("poHistory[%d]: invalid status %q", i, p.Status)
		}
	}
	for i, q := range f.UserQuotas {
		if err := owner("userQuotas", i, q.UserID); err != nil {
			return err
		}
		for _, v := range []*int{q.MonthlyQuota, q.RemainingCredits, q.MonthlyCredits} {
			if v != nil && *v < 0 {
				return fmt.Errorf("userQuotas[%d]: counters must be non-negative", i)
			}
		}
	}
	for i, g := range f.GoogleIntegrations {
		if err := owner("googleIntegrations", i, g.UserID); err != nil {
			return err
		}
		if g.AccessToken == "" || g.RefreshToken == "" {
			return fmt.Errorf("googleIntegrations[%d]: both tokens are required", i)
		}
	}
	return nil
}

// Apply writes the fixtures. Users that already exist are left alone, and
// clients or PO history are only added for users that have none, so
// running it twice does not duplicate rows.
func Apply(ctx context.Context, repo database.RepositoryInterface, f *Fixtures, logger *logging.Logger) (*Summary, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var sum Summary

	for _, u := range f.Users {
		if _, err := repo.GetUser(ctx, u.ID); err == nil {
			continue
		} else if !database.IsNotFound(err) {
			return nil, fmt.Errorf("load user %s: %w", u.ID, err)
		}
		user := &database.User{ID: u.ID, Name: u.Name, Email: u.Email}
		if err := repo.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user %s: %w", u.ID, err)
		}
		if u.Password != "" {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return nil, err
			}
			if err := repo.CreateAccount(ctx, &database.Account{
				AccountID:  user.ID,
				ProviderID: database.ProviderCredential,
				UserID:     user.ID,
				Password:   &hash,
			}); err != nil {
				return nil, fmt.Errorf("create account %s: %w", u.ID, err)
			}
		}
		sum.Users++
	}

	emptyClients, err := usersWithout(ctx, f.Clients, func(c ClientFixture) string { return c.UserID },
		func(userID string) (int, error) {
			list, err := repo.ListClients(ctx, userID, database.ListOptions{Limit: 1})
			return len(list), err
		})
	if err != nil {
		return nil, err
	}
	for _, c := range f.Clients {
		if !emptyClients[c.UserID] {
			continue
		}
		client := &database.Client{UserID: c.UserID, Name: c.Name, Company: c.Company, Email: c.Email, Phone: c.Phone}
		if err := repo.CreateClient(ctx, client); err != nil {
			return nil, fmt.Errorf("create client %s: %w", c.Name, err)
		}
		sum.Clients++
	}

	emptyHistory, err := usersWithout(ctx, f.POHistory, func(p POFixture) string { return p.UserID },
		func(userID string) (int, error) {
			list, err := repo.ListPOHistory(ctx, userID, database.ListOptions{Limit: 1})
			return len(list), err
		})
	if err != nil {
		return nil, err
	}
	for _, p := range f.POHistory {
		if !emptyHistory[p.UserID] {
			continue
		}
		rec := &database.POHistory{
			UserID:      p.UserID,
			PONumber:    p.PONumber,
			Description: p.Description,
			Amount:      p.Amount,
			Status:      p.Status,
		}
		if rec.Status == "" {
			rec.Status = database.StatusCompleted
		}
		if err := repo.CreatePOHistory(ctx, rec); err != nil {
			return nil, fmt.Errorf("create po %s: %w", p.PONumber, err)
		}
		sum.POHistory++
	}

	for _, q := range f.UserQuotas {
		if _, _, err := repo.UpsertQuota(ctx, q.UserID, database.QuotaUpdate{
			MonthlyQuota:     q.MonthlyQuota,
			RemainingCredits: q.RemainingCredits,
			MonthlyCredits:   q.MonthlyCredits,
		}); err != nil {
			return nil, fmt.Errorf("upsert quota %s: %w", q.UserID, err)
		}
		sum.Quotas++
	}

	for _, g := range f.GoogleIntegrations {
		if _, err := repo.UpsertGoogleIntegration(ctx, &database.GoogleIntegration{
			UserID:       g.UserID,
			AccessToken:  g.AccessToken,
			RefreshToken: g.RefreshToken,
			IsActive:     g.IsActive,
		}); err != nil {
			return nil, fmt.Errorf("upsert integration %s: %w", g.UserID, err)
		}
		sum.Integrations++
	}

	logger.WithFields(map[string]interface{}{
		"users":        sum.Users,
		"clients":      sum.Clients,
		"po_history":   sum.POHistory,
		"quotas":       sum.Quotas,
		"integrations": sum.Integrations,
	}).Info("Seed data applied")
	return &sum, nil
}

// usersWithout returns the owners in rows that currently have no records.
func usersWithout[T any](ctx context.Context, rows []T, owner func(T) string, count func(string) (int, error)) (map[string]bool, error) {
	out := make(map[string]bool)
	seen := make(map[string]bool)
	for _, row := range rows {
		id := owner(row)
		if seen[id] {
			continue
		}
		seen[id] = true
		n, err := count(id)
		if err != nil {
			return nil, fmt.Errorf("count records for %s: %w", id, err)
		}
		out[id] = n == 0
	}
	return out, nil
}
