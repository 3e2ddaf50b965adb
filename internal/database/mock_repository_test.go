package database

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockRepositoryClientsAreScopedByUser(t *testing.T) {
	ctx := context.Background()
	m := NewMockRepository()

	a := &Client{UserID: "alice", Name: "Acme"}
	b := &Client{UserID: "bob", Name: "Bravo"}
	require.NoError(t, m.CreateClient(ctx, a))
	require.NoError(t, m.CreateClient(ctx, b))
	assert.Equal(t, "CLIENT_001", a.ClientID)
	assert.Equal(t, "CLIENT_001", b.ClientID)

	_, err := m.GetClient(ctx, "bob", a.ID)
	assert.True(t, IsNotFound(err))

	second := &Client{UserID: "alice", Name: "Second"}
	require.NoError(t, m.CreateClient(ctx, second))
	assert.Equal(t, "CLIENT_002", second.ClientID)

	list, err := m.ListClients(ctx, "alice", ListOptions{Limit: 10, Search: "acm"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestMockRepositoryRecordProcessedPO(t *testing.T) {
	ctx := context.Background()
	m := NewMockRepository()

	_, err := m.RecordProcessedPO(ctx, &POHistory{UserID: "alice", PONumber: "PO-1"})
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	zero := 0
	_, _, err = m.UpsertQuota(ctx, "alice", QuotaUpdate{RemainingCredits: &zero})
	require.NoError(t, err)
	_, err = m.RecordProcessedPO(ctx, &POHistory{UserID: "alice", PONumber: "PO-1"})
	assert.ErrorIs(t, err, ErrInsufficientCredits)

	one := 1
	_, _, err = m.UpsertQuota(ctx, "alice", QuotaUpdate{RemainingCredits: &one})
	require.NoError(t, err)
	q, err := m.RecordProcessedPO(ctx, &POHistory{UserID: "alice", PONumber: "PO-1", Amount: decimal.NewFromInt(50)})
	require.NoError(t, err)
	assert.Equal(t, 0, q.RemainingCredits)

	stats, err := m.GetPOStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Completed)
}

func TestMockRepositorySetQuotaPlanFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	m := NewMockRepository()

	_, err := m.GetOrCreateQuota(ctx, "alice")
	require.NoError(t, err)
	q, err := m.SetQuotaPlan(ctx, "alice", "professional", 100)
	require.NoError(t, err)
	assert.Equal(t, 100, q.RemainingCredits)

	two := 2
	_, _, err = m.UpsertQuota(ctx, "alice", QuotaUpdate{RemainingCredits: &two})
	require.NoError(t, err)
	q, err = m.SetQuotaPlan(ctx, "alice", "starter", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, q.RemainingCredits)
	assert.Equal(t, 10, q.MonthlyCredits)
}

func TestMockRepositoryErrorInjection(t *testing.T) {
	m := NewMockRepository()
	boom := errors.New("boom")
	m.ErrorOnNextCall = boom

	_, err := m.GetOrCreateQuota(context.Background(), "alice")
	assert.ErrorIs(t, err, boom)

	_, err = m.GetOrCreateQuota(context.Background(), "alice")
	assert.NoError(t, err)
}
