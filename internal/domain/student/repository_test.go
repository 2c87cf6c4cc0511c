package student

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestGetByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "created_at", "updated_at"}).
			AddRow(id.String(), "Budi Santoso", "budi@example.com", now, now))

	s, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "Budi Santoso", s.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	s, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, s)
}
