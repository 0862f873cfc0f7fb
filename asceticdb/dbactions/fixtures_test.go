package dbactions_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"syreclabs.com/go/faker"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/dbactions"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/utils/testutils"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/workerpool"
)

const (
	countActiveUsers = "SELECT COUNT(*) FROM users WHERE active = ?"
	updateUserActive = "UPDATE users SET active = ? WHERE id = ?"
	selectUserByID   = "SELECT id, name, active FROM users WHERE id = ?"
	relationSize     = "SELECT pg_total_relation_size(?::regclass)"
)

type user struct {
	ID     int
	Name   string
	Active bool
}

func scanUser(rows session.Rows) (user, error) {
	var u user
	err := rows.Scan(&u.ID, &u.Name, &u.Active)
	return u, err
}

// usersTable answers the users queries of FakeSource from memory.
type usersTable struct {
	mu    sync.Mutex
	users map[int]*user
}

func newUsersTable(active, inactive int) *usersTable {
	t := &usersTable{users: map[int]*user{}}
	id := 40
	for i := 0; i < active+inactive; i++ {
		t.users[id] = &user{ID: id, Name: faker.Name().Name(), Active: i < active}
		id++
	}
	return t
}

func (t *usersTable) install(source *testutils.FakeSource) {
	source.On(countActiveUsers, &testutils.QueryStub{Handler: t.countActive})
	source.On(updateUserActive, &testutils.QueryStub{Handler: t.updateActive})
	source.On(selectUserByID, &testutils.QueryStub{Handler: t.selectByID})
}

func (t *usersTable) get(id int) (user, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[id]
	if !ok {
		return user{}, false
	}
	return *u, true
}

func (t *usersTable) countActive(params []any) ([][]any, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := params[0].(bool)
	var n int64
	for _, u := range t.users {
		if u.Active == active {
			n++
		}
	}
	return [][]any{{n}}, 0, nil
}

func (t *usersTable) updateActive(params []any) ([][]any, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[params[1].(int)]
	if !ok {
		return nil, 0, nil
	}
	u.Active = params[0].(bool)
	return nil, 1, nil
}

func (t *usersTable) selectByID(params []any) ([][]any, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[params[0].(int)]
	if !ok {
		return nil, 0, nil
	}
	return [][]any{{u.ID, u.Name, u.Active}}, 0, nil
}

func (t *usersTable) ids() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]int, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type capturedError struct {
	Err    error
	Source string
}

type recordingLogger struct {
	mu       sync.Mutex
	captured []capturedError
}

func (l *recordingLogger) Capture(_ context.Context, err error, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.captured = append(l.captured, capturedError{Err: err, Source: source})
}

func (l *recordingLogger) Captured() []capturedError {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capturedError(nil), l.captured...)
}

type fixture struct {
	source  *testutils.FakeSource
	pool    *workerpool.Pool
	logger  *recordingLogger
	actions *dbactions.Actions
	users   *usersTable
}

func newFixture(t *testing.T, opts ...dbactions.Option) *fixture {
	t.Helper()
	f := &fixture{
		source: testutils.NewFakeSource(),
		pool:   workerpool.New(2),
		logger: &recordingLogger{},
		users:  newUsersTable(3, 2),
	}
	f.users.install(f.source)
	f.pool.Start()
	t.Cleanup(func() {
		require.NoError(t, f.pool.Shutdown(context.Background()))
	})
	opts = append([]dbactions.Option{dbactions.WithExceptionLogger(f.logger)}, opts...)
	f.actions = dbactions.New(session.NewExecutor(f.source), f.pool, opts...)
	return f
}

func (f *fixture) requireBalanced(t *testing.T) {
	t.Helper()
	require.Equal(t, f.source.Acquired(), f.source.Released(), "every acquired connection must be released")
}

var errBoom = errors.New("boom")
