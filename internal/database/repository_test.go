package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	repo := NewRepository(sqlx.NewDb(mockDB, "postgres"), time.Second)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

var quotaCols = []string{"id", "user_id", "plan", "monthly_quota", "remaining_credits", "monthly_credits", "created_at", "updated_at"}

func TestNextClientID(t *testing.T) {
	tests := []struct {
		last string
		want string
	}{
		{"", "CLIENT_001"},
		{"CLIENT_001", "CLIENT_002"},
		{"CLIENT_009", "CLIENT_010"},
		{"CLIENT_999", "CLIENT_1000"},
		{"garbage", "CLIENT_001"},
	}
	for _, tt := range tests {
		t.Run(tt.last, func(t *testing.T) {
			assert.Equal(t, tt.want, NextClientID(tt.last))
		})
	}
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%acme%`, likePattern("acme"))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestWrapMapsDriverErrors(t *testing.T) {
	err := wrap(&pq.Error{Code: "23505"}, "client", "1", "create")
	assert.ErrorIs(t, err, ErrConflict)

	err = wrap(assert.AnError, "client", "1", "create")
	assert.ErrorIs(t, err, ErrDatabaseError)

	assert.Nil(t, wrap(nil, "client", "1", "create"))
}

func TestListClientsWithSearch(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "client_id", "user_id", "name", "company", "email", "phone", "created_at", "updated_at"}).
		AddRow(2, "CLIENT_002", "user-1", "Acme Traders", "Acme", nil, nil, fixedNow, fixedNow)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM clients WHERE user_id = $1 AND (name ILIKE $2 OR company ILIKE $2 OR email ILIKE $2) ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`)).
		WithArgs("user-1", "%acme%", 10, 0).
		WillReturnRows(rows)

	clients, err := repo.ListClients(context.Background(), "user-1", ListOptions{Limit: 10, Search: "acme"})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "CLIENT_002", clients[0].ClientID)
	require.NotNil(t, clients[0].Company)
	assert.Equal(t, "Acme", *clients[0].Company)
	assert.Nil(t, clients[0].Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListClientsRejectsEmptyUser(t *testing.T) {
	repo, _ := newMockRepo(t)
	_, err := repo.ListClients(context.Background(), " ", ListOptions{Limit: 10})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateClientRetriesOnCollision(t *testing.T) {
	repo, mock := newMockRepo(t)

	lastQuery := regexp.QuoteMeta(`SELECT client_id FROM clients WHERE user_id = $1 ORDER BY id DESC LIMIT 1`)
	insertQuery := regexp.QuoteMeta(`INSERT INTO clients`)

	mock.ExpectQuery(lastQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}).AddRow("CLIENT_004"))
	mock.ExpectQuery(insertQuery).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clients_user_id_client_id_key"})
	mock.ExpectQuery(lastQuery).WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}).AddRow("CLIENT_005"))
	mock.ExpectQuery(insertQuery).
		WithArgs("CLIENT_006", "user-1", "Globex", nil, nil, nil, fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(17))

	client := &Client{UserID: "user-1", Name: "Globex"}
	require.NoError(t, repo.CreateClient(context.Background(), client))
	assert.Equal(t, int64(17), client.ID)
	assert.Equal(t, "CLIENT_006", client.ClientID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateClientFirstForUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT client_id FROM clients`).
		WillReturnRows(sqlmock.NewRows([]string{"client_id"}))
	mock.ExpectQuery(`INSERT INTO clients`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	client := &Client{UserID: "user-1", Name: "First"}
	require.NoError(t, repo.CreateClient(context.Background(), client))
	assert.Equal(t, "CLIENT_001", client.ClientID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteClientNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`DELETE FROM clients`).
		WithArgs(int64(42), "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.DeleteClient(context.Background(), "user-1", 42)
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateClientBuildsPartialSet(t *testing.T) {
	repo, mock := newMockRepo(t)

	name := "Renamed"
	var cleared *string
	rows := sqlmock.NewRows([]string{"id", "client_id", "user_id", "name", "company", "email", "phone", "created_at", "updated_at"}).
		AddRow(3, "CLIENT_003", "user-1", name, nil, nil, nil, fixedNow, fixedNow)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE clients SET updated_at = $3, name = $4, phone = $5`)).
		WithArgs(int64(3), "user-1", fixedNow, name, nil).
		WillReturnRows(rows)

	c, err := repo.UpdateClient(context.Background(), "user-1", 3, ClientUpdate{Name: &name, Phone: &cleared})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", c.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertQuotaReportsInsert(t *testing.T) {
	repo, mock := newMockRepo(t)

	remaining := 7
	cols := append(append([]string{}, quotaCols...), "inserted")
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO user_quotas AS q`)).
		WithArgs("user-1", DefaultPlan, nil, remaining, nil, fixedNow, DefaultMonthlyQuota).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(1, "user-1", "starter", 10, 7, 10, fixedNow, fixedNow, true))

	q, created, err := repo.UpsertQuota(context.Background(), "user-1", QuotaUpdate{RemainingCredits: &remaining})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 7, q.RemainingCredits)
	assert.Equal(t, 10, q.MonthlyCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateQuota(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (user_id) DO NOTHING`)).
		WithArgs("user-1", DefaultPlan, DefaultMonthlyQuota, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .* FROM user_quotas WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(quotaCols).AddRow(1, "user-1", "starter", 10, 10, 10, fixedNow, fixedNow))

	q, err := repo.GetOrCreateQuota(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, DefaultPlan, q.Plan)
	assert.Equal(t, 10, q.RemainingCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordProcessedPOConsumesCredit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SET remaining_credits = remaining_credits - 1`)).
		WithArgs("user-1", fixedNow).
		WillReturnRows(sqlmock.NewRows(quotaCols).AddRow(1, "user-1", "starter", 10, 4, 10, fixedNow, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO po_history`)).
		WithArgs("user-1", "PO-1001", nil, sqlmock.AnyArg(), StatusCompleted, fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(99))
	mock.ExpectCommit()

	record := &POHistory{UserID: "user-1", PONumber: "PO-1001", Amount: decimal.RequireFromString("1250.50")}
	q, err := repo.RecordProcessedPO(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, 4, q.RemainingCredits)
	assert.Equal(t, int64(99), record.ID)
	assert.Equal(t, StatusCompleted, record.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordProcessedPOWithoutCredits(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SET remaining_credits = remaining_credits - 1`)).
		WillReturnRows(sqlmock.NewRows(quotaCols))
	mock.ExpectRollback()

	_, err := repo.RecordProcessedPO(context.Background(), &POHistory{UserID: "user-1", PONumber: "PO-1"})
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetQuotaPlanRejectsNegativeCredits(t *testing.T) {
	repo, _ := newMockRepo(t)
	_, err := repo.SetQuotaPlan(context.Background(), "user-1", "starter", -1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPOStats(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`COUNT(*) FILTER (WHERE status = 'completed') AS completed`)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed", "completed_amount"}).AddRow(4, 3, "1500.25"))

	stats, err := repo.GetPOStats(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Completed)
	assert.True(t, stats.CompletedAmount.Equal(decimal.RequireFromString("1500.25")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSessionByTokenHashFiltersExpired(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE token_hash = $1 AND expires_at > $2`)).
		WithArgs("hash", fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetSessionByTokenHash(context.Background(), "hash")
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetMonthlyCredits(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`SET remaining_credits = monthly_credits`)).
		WithArgs(fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ResetMonthlyCredits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteGoogleIntegrationMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM google_integrations`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteGoogleIntegration(context.Background(), "user-1")
	assert.True(t, IsNotFound(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
