package confirm

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMarker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryMarker(time.Minute)
	m.now = func() time.Time { return now }

	token, ok, err := m.TrySet(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = m.TrySet(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "second set must lose")

	t.Run("Clear with foreign token is ignored", func(t *testing.T) {
		require.NoError(t, m.Clear(ctx, "k", "someone-else"))
		_, ok, _ := m.TrySet(ctx, "k")
		assert.False(t, ok)
	})

	t.Run("Clear with owner token frees the key", func(t *testing.T) {
		require.NoError(t, m.Clear(ctx, "k", token))
		_, ok, _ := m.TrySet(ctx, "k")
		assert.True(t, ok)
	})

	t.Run("Expired marker can be taken over", func(t *testing.T) {
		_, ok, _ := m.TrySet(ctx, "exp")
		require.True(t, ok)
		now = now.Add(2 * time.Minute)
		_, ok, _ = m.TrySet(ctx, "exp")
		assert.True(t, ok)
	})
}

func TestRedisMarker(t *testing.T) {
	ctx := context.Background()
	ttl := 24 * time.Hour

	t.Run("TrySet wins", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		m := NewRedisMarker(client, ttl)
		m.newToken = func() string { return "tok-1" }

		mock.ExpectSetNX("confirm:abc", "tok-1", ttl).SetVal(true)

		token, ok, err := m.TrySet(ctx, "confirm:abc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tok-1", token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("TrySet loses", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		m := NewRedisMarker(client, ttl)
		m.newToken = func() string { return "tok-2" }

		mock.ExpectSetNX("confirm:abc", "tok-2", ttl).SetVal(false)

		token, ok, err := m.TrySet(ctx, "confirm:abc")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, token)
	})

	t.Run("TrySet error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		m := NewRedisMarker(client, ttl)
		m.newToken = func() string { return "tok-3" }

		mock.ExpectSetNX("confirm:abc", "tok-3", ttl).SetErr(errors.New("connection refused"))

		_, ok, err := m.TrySet(ctx, "confirm:abc")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("Clear runs compare and delete", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		m := NewRedisMarker(client, ttl)

		mock.ExpectEval(clearScript, []string{"confirm:abc"}, "tok-1").SetVal(int64(1))

		assert.NoError(t, m.Clear(ctx, "confirm:abc", "tok-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Clear error", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		m := NewRedisMarker(client, ttl)

		mock.ExpectEval(clearScript, []string{"confirm:abc"}, "tok-1").SetErr(errors.New("timeout"))

		assert.Error(t, m.Clear(ctx, "confirm:abc", "tok-1"))
	})
}

func TestPostgresMarker(t *testing.T) {
	ctx := context.Background()
	insertQ := regexp.QuoteMeta("INSERT INTO payment_confirmations")
	deleteQ := regexp.QuoteMeta("DELETE FROM payment_confirmations")

	t.Run("TrySet wins", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		m := NewPostgresMarker(db, 24*time.Hour)
		m.newToken = func() string { return "tok-1" }

		mock.ExpectQuery(insertQ).
			WithArgs("confirm:abc", "tok-1", int64(86400)).
			WillReturnRows(sqlmock.NewRows([]string{"owner_token"}).AddRow("tok-1"))

		token, ok, err := m.TrySet(ctx, "confirm:abc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "tok-1", token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("TrySet conflict", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		m := NewPostgresMarker(db, time.Hour)
		m.newToken = func() string { return "tok-2" }

		mock.ExpectQuery(insertQ).
			WithArgs("confirm:abc", "tok-2", int64(3600)).
			WillReturnRows(sqlmock.NewRows([]string{"owner_token"}))

		_, ok, err := m.TrySet(ctx, "confirm:abc")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("TrySet db error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		m := NewPostgresMarker(db, time.Hour)
		mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

		_, ok, err := m.TrySet(ctx, "confirm:abc")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("Clear", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		m := NewPostgresMarker(db, time.Hour)
		mock.ExpectExec(deleteQ).
			WithArgs("confirm:abc", "tok-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, m.Clear(ctx, "confirm:abc", "tok-1"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
