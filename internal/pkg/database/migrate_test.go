package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), "migrations")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	for _, e := range entries {
		body, err := fs.ReadFile(Migrations(), "migrations/"+e.Name())
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", e.Name())
		assert.Contains(t, string(body), "-- +goose Down", e.Name())
	}
}

func TestTransactionsSchemaGuards(t *testing.T) {
	body, err := fs.ReadFile(Migrations(), "migrations/00003_transactions.sql")
	require.NoError(t, err)
	schema := string(body)

	assert.True(t, strings.Contains(schema, "WHERE status <> 'failed'"), "duplicate purchase index must ignore failed attempts")
	assert.Contains(t, schema, "final_price + discount = original_price")
}

func TestMoneySchemaIsWholeUnit(t *testing.T) {
	body, err := fs.ReadFile(Migrations(), "migrations/00004_whole_unit_money.sql")
	require.NoError(t, err)
	schema := string(body)

	assert.Contains(t, schema, "CHECK (normal_price = TRUNC(normal_price))")
	assert.Contains(t, schema, "chk_course_types_whole_fixed_discount")
	assert.Contains(t, schema, "chk_promo_codes_whole_fixed_discount")
}

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(t.Context(), "")
	assert.NoError(t, err)
	assert.Nil(t, client)
}
