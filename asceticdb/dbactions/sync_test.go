package dbactions_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/dbactions"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/log"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/utils/testutils"
)

func TestCount(t *testing.T) {
	t.Run("counts rows matching the bound parameter", func(t *testing.T) {
		f := newFixture(t)

		count := f.actions.Count(context.Background(), countActiveUsers, dbactions.Params(true))

		assert.Equal(t, int64(3), count)
		assert.Empty(t, f.logger.Captured())
		require.Len(t, f.source.Executions(), 1)
		assert.Equal(t, []any{true}, f.source.Executions()[0].Params)
		f.requireBalanced(t)
	})

	t.Run("no rows gives zero", func(t *testing.T) {
		f := newFixture(t)
		f.source.On("SELECT COUNT(*) FROM empty", nil)

		assert.Equal(t, int64(0), f.actions.CountQuery(context.Background(), "SELECT COUNT(*) FROM empty"))
		assert.Empty(t, f.logger.Captured())
	})

	t.Run("failure gives zero and is captured once", func(t *testing.T) {
		f := newFixture(t)
		f.source.On("SELECT COUNT(*) FROM broken", &testutils.QueryStub{Err: errBoom})

		count := f.actions.CountQuery(context.Background(), "SELECT COUNT(*) FROM broken")

		assert.Equal(t, int64(0), count)
		captured := f.logger.Captured()
		require.Len(t, captured, 1)
		assert.ErrorIs(t, captured[0].Err, errBoom)
		assert.Equal(t, dbactions.SourceLabel, captured[0].Source)
		f.requireBalanced(t)
	})

	t.Run("NULL gives zero without a failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.On("SELECT MAX(id) FROM empty", &testutils.QueryStub{Rows: [][]any{{nil}}})

		assert.Equal(t, int64(0), f.actions.CountQuery(context.Background(), "SELECT MAX(id) FROM empty"))
		assert.Empty(t, f.logger.Captured())
	})

	t.Run("panicking exception logger does not escape", func(t *testing.T) {
		f := newFixture(t)
		f.source.On("SELECT COUNT(*) FROM broken", &testutils.QueryStub{Err: errBoom})
		panicking := log.ExceptionLoggerFunc(func(context.Context, error, string) {
			panic("logger exploded")
		})
		actions := dbactions.New(session.NewExecutor(f.source), f.pool, dbactions.WithExceptionLogger(panicking))

		var count int64
		assert.NotPanics(t, func() {
			count = actions.CountQuery(context.Background(), "SELECT COUNT(*) FROM broken")
		})
		assert.Equal(t, int64(0), count)
		f.requireBalanced(t)
	})

	t.Run("unsafe count formats the query text", func(t *testing.T) {
		f := newFixture(t)
		f.source.On("SELECT COUNT(*) FROM orders", &testutils.QueryStub{Rows: [][]any{{7}}})

		count := f.actions.UnsafeCountf(context.Background(), "SELECT COUNT(*) FROM %s", "orders")

		assert.Equal(t, int64(7), count)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("existing row", func(t *testing.T) {
		f := newFixture(t)
		f.users.users[42].Active = true

		n, err := f.actions.Update(context.Background(), updateUserActive, false, 42)

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		u, _ := f.users.get(42)
		assert.False(t, u.Active)
		assert.Equal(t, []any{false, 42}, f.source.Executions()[0].Params)
		f.requireBalanced(t)
	})

	t.Run("missing row", func(t *testing.T) {
		f := newFixture(t)

		n, err := f.actions.Update(context.Background(), updateUserActive, false, 4242)

		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("failure is returned and captured", func(t *testing.T) {
		f := newFixture(t)
		f.source.On("DELETE FROM users", &testutils.QueryStub{Err: errBoom})

		_, err := f.actions.Update(context.Background(), "DELETE FROM users")

		assert.ErrorIs(t, err, errBoom)
		assert.Len(t, f.logger.Captured(), 1)
		f.requireBalanced(t)
	})
}

func TestFetchSingleEntity(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		f := newFixture(t)

		found := dbactions.FetchSingleEntity(context.Background(), f.actions, selectUserByID, dbactions.Params(1), scanUser)

		assert.True(t, found.IsNothing())
		assert.Empty(t, f.logger.Captured())
	})

	t.Run("existing key", func(t *testing.T) {
		f := newFixture(t)
		expected, ok := f.users.get(41)
		require.True(t, ok)

		found := dbactions.FetchSingleEntity(context.Background(), f.actions, selectUserByID, dbactions.Params(41), scanUser)

		actual, ok := found.Get()
		require.True(t, ok)
		assert.Equal(t, expected, actual)
		f.requireBalanced(t)
	})

	t.Run("mapper failure gives nothing", func(t *testing.T) {
		f := newFixture(t)

		found := dbactions.FetchSingleEntity(context.Background(), f.actions, selectUserByID, dbactions.Params(41),
			func(session.Rows) (user, error) {
				return user{}, errBoom
			})

		assert.True(t, found.IsNothing())
		assert.Len(t, f.logger.Captured(), 1)
		f.requireBalanced(t)
	})
}

func TestLogicalSize(t *testing.T) {
	t.Run("uses the source query", func(t *testing.T) {
		f := newFixture(t)
		f.source.LogicalSizeSQL = relationSize
		actions := dbactions.New(session.NewExecutor(f.source), f.pool, dbactions.WithExceptionLogger(f.logger))
		f.source.On(relationSize, &testutils.QueryStub{Rows: [][]any{{int64(8192)}}})

		assert.Equal(t, int64(8192), actions.LogicalSize(context.Background(), "users"))
		assert.Equal(t, []any{"users"}, f.source.Executions()[0].Params)
	})

	t.Run("falls back to the H2 procedure", func(t *testing.T) {
		f := newFixture(t)
		f.source.On(dbactions.DefaultLogicalSizeQuery, &testutils.QueryStub{Rows: [][]any{{16384}}})

		assert.Equal(t, int64(16384), f.actions.LogicalSize(context.Background(), "USERS"))
	})

	t.Run("introspection failure gives zero", func(t *testing.T) {
		f := newFixture(t, dbactions.WithLogicalSizeQuery(relationSize))
		f.source.On(relationSize, &testutils.QueryStub{Handler: func(params []any) ([][]any, int64, error) {
			return nil, 0, errors.Errorf("relation %q does not exist", params[0])
		}})

		var size int64
		assert.NotPanics(t, func() {
			size = f.actions.LogicalSize(context.Background(), "no_such_table")
		})

		assert.Equal(t, int64(0), size)
		assert.Len(t, f.logger.Captured(), 1)
		f.requireBalanced(t)
	})
}

func TestDoAction(t *testing.T) {
	t.Run("connection is released after the action", func(t *testing.T) {
		f := newFixture(t)

		err := f.actions.DoAction(context.Background(), func(c session.Connection) error {
			assert.Equal(t, 1, f.source.Acquired())
			assert.Equal(t, 0, f.source.Released())
			return nil
		})

		require.NoError(t, err)
		f.requireBalanced(t)
	})

	t.Run("failure is returned after release", func(t *testing.T) {
		f := newFixture(t)

		err := f.actions.DoAction(context.Background(), func(session.Connection) error {
			return errBoom
		})

		assert.ErrorIs(t, err, errBoom)
		assert.Len(t, f.logger.Captured(), 1)
		f.requireBalanced(t)
	})

	t.Run("acquisition failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.AcquireErr = errBoom

		err := f.actions.DoAction(context.Background(), func(session.Connection) error {
			t.Fatal("action must not run")
			return nil
		})

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 0, f.source.Released())
	})
}

func TestMap(t *testing.T) {
	f := newFixture(t)

	names, err := dbactions.MapQuery(context.Background(), f.actions, selectUserByID, dbactions.Params(40),
		func(rows session.Rows) ([]string, error) {
			var names []string
			for rows.Next() {
				u, err := scanUser(rows)
				if err != nil {
					return nil, err
				}
				names = append(names, u.Name)
			}
			return names, nil
		})
	require.NoError(t, err)
	expected, _ := f.users.get(40)
	assert.Equal(t, []string{expected.Name}, names)

	id, err := dbactions.Map(context.Background(), f.actions, func(c session.Connection) (int, error) {
		return c.(interface{ ID() int }).ID(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	f.requireBalanced(t)
}

func TestBalancedAfterMixedOperations(t *testing.T) {
	f := newFixture(t)
	f.source.On("SELECT broken", &testutils.QueryStub{Err: errBoom})
	ctx := context.Background()

	for _, id := range f.users.ids() {
		_, _ = f.actions.Update(ctx, updateUserActive, true, id)
		_ = dbactions.FetchSingleEntity(ctx, f.actions, selectUserByID, dbactions.Params(id), scanUser)
		_ = f.actions.CountQuery(ctx, "SELECT broken")
		_ = f.actions.DoAction(ctx, func(session.Connection) error { panic("boom") })
	}

	assert.Equal(t, 20, f.source.Acquired())
	f.requireBalanced(t)
	assert.Equal(t, int64(5), f.actions.Count(ctx, countActiveUsers, dbactions.Params(true)))
	assert.Len(t, f.logger.Captured(), 10)
}
