package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow-ai/tradeflow/internal/auth"
	"github.com/tradeflow-ai/tradeflow/internal/database"
)

func TestDefaultFixtures(t *testing.T) {
	f, err := Default()
	require.NoError(t, err)

	assert.Len(t, f.Users, 2)
	assert.Len(t, f.Clients, 5)
	assert.Len(t, f.POHistory, 8)
	assert.Len(t, f.UserQuotas, 2)
	assert.Len(t, f.GoogleIntegrations, 2)
	assert.True(t, f.POHistory[0].Amount.Equal(decimal.RequireFromString("247.85")))
}

func TestParseRejectsBadFixtures(t *testing.T) {
	cases := map[string]string{
		"unknown owner": `
users: [{id: u1, name: One, email: one@example.com}]
clients: [{userId: u2, name: Someone}]`,
		"bad status": `
users: [{id: u1, name: One, email: one@example.com}]
poHistory: [{userId: u1, poNumber: PO-1, amount: "10", status: shipped}]`,
		"zero amount": `
users: [{id: u1, name: One, email: one@example.com}]
poHistory: [{userId: u1, poNumber: PO-1, amount: "0"}]`,
		"amount too large": `
users: [{id: u1, name: One, email: one@example.com}]
poHistory: [{userId: u1, poNumber: PO-1, amount: "10000000000"}]`,
		"negative quota": `
users: [{id: u1, name: One, email: one@example.com}]
userQuotas: [{userId: u1, remainingCredits: -1}]`,
		"short password": `
users: [{id: u1, name: One, email: one@example.com, password: short}]`,
		"missing token": `
users: [{id: u1, name: One, email: one@example.com}]
googleIntegrations: [{userId: u1, accessToken: a}]`,
		"not yaml": `users: [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMockRepository()
	f, err := Default()
	require.NoError(t, err)

	sum, err := Apply(ctx, repo, f, nil)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Users: 2, Clients: 5, POHistory: 8, Quotas: 2, Integrations: 2}, sum)

	clients, err := repo.ListClients(ctx, "test-user-1", database.ListOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, clients, 5)
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ClientID)
	}
	assert.ElementsMatch(t, []string{"CLIENT_001", "CLIENT_002", "CLIENT_003", "CLIENT_004", "CLIENT_005"}, ids)

	q, err := repo.GetOrCreateQuota(ctx, "test-user-2")
	require.NoError(t, err)
	assert.Equal(t, 100, q.MonthlyQuota)
	assert.Equal(t, 75, q.RemainingCredits)

	g, err := repo.GetGoogleIntegration(ctx, "test-user-1")
	require.NoError(t, err)
	assert.True(t, g.IsActive)

	acct, err := repo.GetAccountByProvider(ctx, "test-user-1", database.ProviderCredential)
	require.NoError(t, err)
	require.NotNil(t, acct.Password)
	assert.True(t, auth.CheckPassword(*acct.Password, "tradeflow-demo-1"))
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMockRepository()
	f, err := Default()
	require.NoError(t, err)

	_, err = Apply(ctx, repo, f, nil)
	require.NoError(t, err)
	sum, err := Apply(ctx, repo, f, nil)
	require.NoError(t, err)

	assert.Zero(t, sum.Users)
	assert.Zero(t, sum.Clients)
	assert.Zero(t, sum.POHistory)

	records, err := repo.ListPOHistory(ctx, "test-user-2", database.ListOptions{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestApplyPropagatesErrors(t *testing.T) {
	repo := database.NewMockRepository()
	repo.ErrorOnNextCall = errors.New("connection refused")
	f, err := Default()
	require.NoError(t, err)

	_, err = Apply(context.Background(), repo, f, nil)
	assert.ErrorContains(t, err, "connection refused")
}
