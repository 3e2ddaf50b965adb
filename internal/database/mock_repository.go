package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockRepository is an in-memory implementation of RepositoryInterface for testing.
type MockRepository struct {
	mu sync.RWMutex

	users         map[string]*User
	accounts      map[string]*Account
	sessions      map[string]*Session // keyed by token hash
	verifications map[string]*Verification
	clients       map[int64]*Client
	poHistory     map[int64]*POHistory
	quotas        map[string]*UserQuota
	integrations  map[string]*GoogleIntegration

	nextID int64

	// Now overrides the clock when set.
	Now func() time.Time

	// Error injection for testing error paths
	ErrorOnNextCall error
}

// NewMockRepository creates a new mock repository for testing.
func NewMockRepository() *MockRepository {
	m := &MockRepository{}
	m.Reset()
	return m
}

var _ RepositoryInterface = (*MockRepository)(nil)

// Reset clears all data in the mock repository.
func (m *MockRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[string]*User)
	m.accounts = make(map[string]*Account)
	m.sessions = make(map[string]*Session)
	m.verifications = make(map[string]*Verification)
	m.clients = make(map[int64]*Client)
	m.poHistory = make(map[int64]*POHistory)
	m.quotas = make(map[string]*UserQuota)
	m.integrations = make(map[string]*GoogleIntegration)
	m.nextID = 0
	m.ErrorOnNextCall = nil
}

// checkError returns and clears any injected error. Callers hold m.mu.
func (m *MockRepository) checkError() error {
	if m.ErrorOnNextCall != nil {
		err := m.ErrorOnNextCall
		m.ErrorOnNextCall = nil
		return err
	}
	return nil
}

func (m *MockRepository) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *MockRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MockRepository) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkError()
}

// --- users -------------------------------------------------------------------

func (m *MockRepository) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: create user %s", ErrConflict, user.Email)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := m.now()
	user.CreatedAt, user.UpdatedAt = now, now
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockRepository) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, NewNotFoundError("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *MockRepository) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, NewNotFoundError("user", email)
}

func (m *MockRepository) UpdateUserProfile(_ context.Context, id string, name, image *string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, NewNotFoundError("user", id)
	}
	if name != nil {
		u.Name = *name
	}
	if image != nil {
		img := *image
		u.Image = &img
		if img == "" {
			u.Image = nil
		}
	}
	u.UpdatedAt = m.now()
	cp := *u
	return &cp, nil
}

func (m *MockRepository) CreateAccount(_ context.Context, account *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := m.now()
	account.CreatedAt, account.UpdatedAt = now, now
	cp := *account
	m.accounts[account.ID] = &cp
	return nil
}

func (m *MockRepository) GetAccountByProvider(_ context.Context, userID, providerID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	for _, a := range m.accounts {
		if a.UserID == userID && a.ProviderID == providerID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, NewNotFoundError("account", providerID)
}

// --- sessions ----------------------------------------------------------------

func (m *MockRepository) CreateSession(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := m.now()
	session.CreatedAt, session.UpdatedAt = now, now
	cp := *session
	m.sessions[session.TokenHash] = &cp
	return nil
}

func (m *MockRepository) GetSessionByTokenHash(_ context.Context, tokenHash string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	s, ok := m.sessions[tokenHash]
	if !ok || !s.ExpiresAt.After(m.now()) {
		return nil, NewNotFoundError("session", "token")
	}
	cp := *s
	return &cp, nil
}

func (m *MockRepository) UpdateSessionActivity(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	for _, s := range m.sessions {
		if s.ID == sessionID {
			s.UpdatedAt = m.now()
		}
	}
	return nil
}

func (m *MockRepository) DeleteSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	delete(m.sessions, tokenHash)
	return nil
}

func (m *MockRepository) DeleteExpiredSessions(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return 0, err
	}
	var n int64
	now := m.now()
	for k, s := range m.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}

// SessionCount returns the number of stored sessions.
func (m *MockRepository) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// --- verifications -----------------------------------------------------------

func (m *MockRepository) CreateVerification(_ context.Context, v *Verification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := m.now()
	v.CreatedAt, v.UpdatedAt = now, now
	cp := *v
	m.verifications[v.Identifier] = &cp
	return nil
}

func (m *MockRepository) ConsumeVerification(_ context.Context, identifier string) (*Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	v, ok := m.verifications[identifier]
	if !ok || !v.ExpiresAt.After(m.now()) {
		return nil, NewNotFoundError("verification", identifier)
	}
	delete(m.verifications, identifier)
	cp := *v
	return &cp, nil
}

func (m *MockRepository) DeleteExpiredVerifications(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return 0, err
	}
	var n int64
	now := m.now()
	for k, v := range m.verifications {
		if !v.ExpiresAt.After(now) {
			delete(m.verifications, k)
			n++
		}
	}
	return n, nil
}

// --- clients -----------------------------------------------------------------

func matchesSearch(search string, fields ...*string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, f := range fields {
		if f != nil && strings.Contains(strings.ToLower(*f), search) {
			return true
		}
	}
	return false
}

func page[T any](items []T, opts ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func (m *MockRepository) ListClients(_ context.Context, userID string, opts ListOptions) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []Client{}
	for _, c := range m.clients {
		name := c.Name
		if c.UserID == userID && matchesSearch(opts.Search, &name, c.Company, c.Email) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, opts), nil
}

func (m *MockRepository) GetClient(_ context.Context, userID string, id int64) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return nil, NewNotFoundError("client", strconv.FormatInt(id, 10))
	}
	cp := *c
	return &cp, nil
}

func (m *MockRepository) CreateClient(_ context.Context, client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	var last *Client
	for _, c := range m.clients {
		if c.UserID == client.UserID && (last == nil || c.ID > last.ID) {
			last = c
		}
	}
	lastID := ""
	if last != nil {
		lastID = last.ClientID
	}
	client.ClientID = NextClientID(lastID)
	client.ID = m.id()
	now := m.now()
	client.CreatedAt, client.UpdatedAt = now, now
	cp := *client
	m.clients[client.ID] = &cp
	return nil
}

func (m *MockRepository) UpdateClient(_ context.Context, userID string, id int64, update ClientUpdate) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return nil, NewNotFoundError("client", strconv.FormatInt(id, 10))
	}
	if update.Name != nil {
		c.Name = *update.Name
	}
	if update.Company != nil {
		c.Company = *update.Company
	}
	if update.Email != nil {
		c.Email = *update.Email
	}
	if update.Phone != nil {
		c.Phone = *update.Phone
	}
	c.UpdatedAt = m.now()
	cp := *c
	return &cp, nil
}

func (m *MockRepository) DeleteClient(_ context.Context, userID string, id int64) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	c, ok := m.clients[id]
	if !ok || c.UserID != userID {
		return nil, NewNotFoundError("client", strconv.FormatInt(id, 10))
	}
	delete(m.clients, id)
	return c, nil
}

// --- PO history --------------------------------------------------------------

func (m *MockRepository) ListPOHistory(_ context.Context, userID string, opts ListOptions) ([]POHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	out := []POHistory{}
	for _, p := range m.poHistory {
		number := p.PONumber
		if p.UserID == userID && matchesSearch(opts.Search, &number, p.Description) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, opts), nil
}

func (m *MockRepository) GetPOHistory(_ context.Context, userID string, id int64) (*POHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	p, ok := m.poHistory[id]
	if !ok || p.UserID != userID {
		return nil, NewNotFoundError("po_history", strconv.FormatInt(id, 10))
	}
	cp := *p
	return &cp, nil
}

func (m *MockRepository) CreatePOHistory(_ context.Context, record *POHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	m.insertPO(record)
	return nil
}

func (m *MockRepository) insertPO(record *POHistory) {
	if record.Status == "" {
		record.Status = StatusCompleted
	}
	record.ID = m.id()
	now := m.now()
	record.CreatedAt, record.UpdatedAt = now, now
	cp := *record
	m.poHistory[record.ID] = &cp
}

func (m *MockRepository) UpdatePOHistory(_ context.Context, userID string, id int64, update POUpdate) (*POHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	p, ok := m.poHistory[id]
	if !ok || p.UserID != userID {
		return nil, NewNotFoundError("po_history", strconv.FormatInt(id, 10))
	}
	if update.PONumber != nil {
		p.PONumber = *update.PONumber
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	if update.Amount != nil {
		p.Amount = *update.Amount
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	p.UpdatedAt = m.now()
	cp := *p
	return &cp, nil
}

func (m *MockRepository) DeletePOHistory(_ context.Context, userID string, id int64) (*POHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	p, ok := m.poHistory[id]
	if !ok || p.UserID != userID {
		return nil, NewNotFoundError("po_history", strconv.FormatInt(id, 10))
	}
	delete(m.poHistory, id)
	return p, nil
}

func (m *MockRepository) GetPOStats(_ context.Context, userID string) (*POStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	stats := &POStats{CompletedAmount: decimal.Zero}
	for _, p := range m.poHistory {
		if p.UserID != userID {
			continue
		}
		stats.Total++
		if p.Status == StatusCompleted {
			stats.Completed++
			stats.CompletedAmount = stats.CompletedAmount.Add(p.Amount)
		}
	}
	return stats, nil
}

// --- quotas ------------------------------------------------------------------

func (m *MockRepository) ensureQuota(userID string) *UserQuota {
	q, ok := m.quotas[userID]
	if !ok {
		now := m.now()
		q = &UserQuota{
			ID:               m.id(),
			UserID:           userID,
			Plan:             DefaultPlan,
			MonthlyQuota:     DefaultMonthlyQuota,
			RemainingCredits: DefaultMonthlyQuota,
			MonthlyCredits:   DefaultMonthlyQuota,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		m.quotas[userID] = q
	}
	return q
}

func (m *MockRepository) GetOrCreateQuota(_ context.Context, userID string) (*UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	cp := *m.ensureQuota(userID)
	return &cp, nil
}

func (m *MockRepository) UpsertQuota(_ context.Context, userID string, update QuotaUpdate) (*UserQuota, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, false, err
	}
	_, existed := m.quotas[userID]
	q := m.ensureQuota(userID)
	if update.MonthlyQuota != nil {
		q.MonthlyQuota = *update.MonthlyQuota
	}
	if update.RemainingCredits != nil {
		q.RemainingCredits = *update.RemainingCredits
	}
	if update.MonthlyCredits != nil {
		q.MonthlyCredits = *update.MonthlyCredits
	}
	q.UpdatedAt = m.now()
	cp := *q
	return &cp, !existed, nil
}

func (m *MockRepository) SetQuotaPlan(_ context.Context, userID, plan string, credits int) (*UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	q, ok := m.quotas[userID]
	if !ok {
		return nil, NewNotFoundError("user_quota", userID)
	}
	remaining := q.RemainingCredits + (credits - q.MonthlyCredits)
	if remaining < 0 {
		remaining = 0
	}
	q.Plan = plan
	q.MonthlyQuota = credits
	q.MonthlyCredits = credits
	q.RemainingCredits = remaining
	q.UpdatedAt = m.now()
	cp := *q
	return &cp, nil
}

func (m *MockRepository) RecordProcessedPO(_ context.Context, record *POHistory) (*UserQuota, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	q, ok := m.quotas[record.UserID]
	if !ok || q.RemainingCredits <= 0 {
		return nil, ErrInsufficientCredits
	}
	q.RemainingCredits--
	q.UpdatedAt = m.now()
	m.insertPO(record)
	cp := *q
	return &cp, nil
}

func (m *MockRepository) ResetMonthlyCredits(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return 0, err
	}
	var n int64
	for _, q := range m.quotas {
		if q.RemainingCredits != q.MonthlyCredits {
			q.RemainingCredits = q.MonthlyCredits
			q.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

// --- Google integrations -----------------------------------------------------

func (m *MockRepository) GetGoogleIntegration(_ context.Context, userID string) (*GoogleIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return nil, err
	}
	g, ok := m.integrations[userID]
	if !ok {
		return nil, NewNotFoundError("google_integration", userID)
	}
	cp := *g
	return &cp, nil
}

func (m *MockRepository) UpsertGoogleIntegration(_ context.Context, integration *GoogleIntegration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return false, err
	}
	integration.AccessToken = strings.TrimSpace(integration.AccessToken)
	integration.RefreshToken = strings.TrimSpace(integration.RefreshToken)
	now := m.now()
	existing, ok := m.integrations[integration.UserID]
	if ok {
		integration.ID = existing.ID
		integration.CreatedAt = existing.CreatedAt
		if integration.GoogleEmail == nil {
			integration.GoogleEmail = existing.GoogleEmail
		}
	} else {
		integration.ID = m.id()
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now
	cp := *integration
	m.integrations[integration.UserID] = &cp
	return !ok, nil
}

func (m *MockRepository) DeleteGoogleIntegration(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkError(); err != nil {
		return err
	}
	if _, ok := m.integrations[userID]; !ok {
		return NewNotFoundError("google_integration", userID)
	}
	delete(m.integrations, userID)
	return nil
}
