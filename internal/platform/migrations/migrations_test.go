package migrations

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceOrdersMigrations(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	_, err = src.Next(next)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEveryMigrationHasDown(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	for _, v := range []uint{1, 2} {
		up, _, err := src.ReadUp(v)
		require.NoError(t, err, "up %d", v)
		up.Close()

		down, _, err := src.ReadDown(v)
		require.NoError(t, err, "down %d", v)
		down.Close()
	}
}

func TestSchemaDefinesTables(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	var schema strings.Builder
	for _, v := range []uint{1, 2} {
		r, _, err := src.ReadUp(v)
		require.NoError(t, err)
		body, err := io.ReadAll(r)
		r.Close()
		require.NoError(t, err)
		schema.Write(body)
	}

	for _, table := range []string{"users", "sessions", "accounts", "verifications", "clients", "user_quotas", "po_history", "google_integrations"} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
	assert.Contains(t, schema.String(), "clients_user_id_client_id_key UNIQUE (user_id, client_id)")
	assert.Contains(t, schema.String(), "is_active     BOOLEAN NOT NULL DEFAULT FALSE")
	assert.Contains(t, schema.String(), "amount      NUMERIC(12, 2) NOT NULL")
}
