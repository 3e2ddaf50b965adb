package upload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow-ai/tradeflow/internal/database"
)

func textDoc(name, body string) Document {
	return Document{FileName: name, ContentType: "text/plain", Data: []byte(body)}
}

func TestProcessConsumesCreditOnSuccess(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMockRepository()
	p := NewProcessor(repo, nil, 0)

	results, remaining, err := p.Process(ctx, "user-1", []Document{textDoc("po.txt", sampleInvoice)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Nil(t, res.Code)
	require.NotNil(t, res.PONumber)
	assert.Equal(t, "PO-2024-0042", *res.PONumber)
	require.NotNil(t, res.Record)
	assert.NotZero(t, res.Record.ID)
	assert.Equal(t, "590.59", res.Record.Amount.StringFixed(2))
	assert.Equal(t, "ACME Supplies Pvt Ltd - Processed from po.txt", *res.Record.Description)
	assert.Equal(t, 9, remaining)

	history, err := repo.ListPOHistory(ctx, "user-1", database.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestProcessFailuresDoNotConsumeCredits(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMockRepository()
	p := NewProcessor(repo, nil, 64)

	docs := []Document{
		{FileName: "scan.png", ContentType: "image/png", Data: []byte("\x89PNG\r\n\x1a\n")},
		textDoc("big.txt", strings.Repeat("x", 65)),
		textDoc("nopo.txt", "Total: 5.00"),
		textDoc("nototal.txt", "PO Number: PO-77"),
	}
	results, remaining, err := p.Process(ctx, "user-1", docs)
	require.NoError(t, err)
	require.Len(t, results, 4)

	codes := make([]string, len(results))
	for i, r := range results {
		assert.Equal(t, StatusFailed, r.Status)
		require.NotNil(t, r.Code)
		require.NotNil(t, r.Error)
		codes[i] = *r.Code
	}
	assert.Equal(t, []string{CodeUnsupportedType, CodeFileTooLarge, CodeNoPONumber, CodeNoTotalAmount}, codes)
	assert.Equal(t, "PO-77", *results[3].PONumber)
	assert.Equal(t, 10, remaining)
}

func TestProcessWithoutCredits(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMockRepository()
	zero := 0
	_, _, err := repo.UpsertQuota(ctx, "user-1", database.QuotaUpdate{RemainingCredits: &zero})
	require.NoError(t, err)

	p := NewProcessor(repo, nil, 0)
	results, remaining, err := p.Process(ctx, "user-1", []Document{textDoc("po.txt", sampleInvoice)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, CodeInsufficientCredits, *results[0].Code)
	assert.Nil(t, results[0].Record)
	assert.Equal(t, 0, remaining)
}

func TestProcessLastCreditOnlyPaysForOne(t *testing.T) {
	ctx := context.Background()
	repo := database.NewMockRepository()
	one := 1
	_, _, err := repo.UpsertQuota(ctx, "user-1", database.QuotaUpdate{RemainingCredits: &one})
	require.NoError(t, err)

	p := NewProcessor(repo, nil, 0)
	results, remaining, err := p.Process(ctx, "user-1", []Document{
		textDoc("a.txt", "PO-1\nTotal: 10.00"),
		textDoc("b.txt", "PO-2\nTotal: 20.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, CodeInsufficientCredits, *results[1].Code)
	assert.Equal(t, 0, remaining)
}

func TestProcessQuotaLoadError(t *testing.T) {
	repo := database.NewMockRepository()
	repo.ErrorOnNextCall = errors.New("connection refused")

	_, _, err := NewProcessor(repo, nil, 0).Process(context.Background(), "user-1", nil)
	assert.Error(t, err)
}
