package testutils

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/krew-solutions/ascetic-db-go/asceticdb/session"
	"github.com/krew-solutions/ascetic-db-go/asceticdb/session/result"
)

// QueryHandler computes the outcome of a query from its bound
// parameters.
type QueryHandler func(params []any) (rows [][]any, rowsAffected int64, err error)

// QueryStub scripts how FakeSource answers one query text.
type QueryStub struct {
	Rows         [][]any
	RowsAffected int64
	Err          error
	PrepareErr   error
	CloseErr     error
	Handler      QueryHandler
}

type Execution struct {
	Query  string
	Params []any
}

// FakeSource is an in-memory session.ConnectionSource which counts
// acquisitions and releases and records the order in which resources
// are opened and closed.
type FakeSource struct {
	AcquireErr     error
	ReleaseErr     error
	AcquireGate    chan struct{}
	LogicalSizeSQL string

	mu         sync.Mutex
	queries    map[string]*QueryStub
	acquired   int
	released   int
	trace      []string
	executions []Execution
}

func NewFakeSource() *FakeSource {
	return &FakeSource{queries: map[string]*QueryStub{}}
}

// On registers the stub answering query and returns it for further
// configuration.
func (s *FakeSource) On(query string, stub *QueryStub) *QueryStub {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stub == nil {
		stub = &QueryStub{}
	}
	s.queries[query] = stub
	return stub
}

func (s *FakeSource) Acquire(ctx context.Context) (session.Connection, error) {
	if s.AcquireGate != nil {
		select {
		case <-s.AcquireGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.AcquireErr != nil {
		s.record("acquire-failed")
		return nil, s.AcquireErr
	}
	s.mu.Lock()
	s.acquired++
	id := s.acquired
	s.trace = append(s.trace, "acquire")
	s.mu.Unlock()
	return &fakeConnection{ctx: ctx, source: s, id: id}, nil
}

func (s *FakeSource) LogicalSizeQuery() string {
	return s.LogicalSizeSQL
}

func (s *FakeSource) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

func (s *FakeSource) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Trace returns the resource lifecycle steps seen so far, e.g.
// acquire, prepare, query, close-rows, close-statement, release.
func (s *FakeSource) Trace() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.trace...)
}

func (s *FakeSource) Executions() []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Execution(nil), s.executions...)
}

func (s *FakeSource) record(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = append(s.trace, step)
}

func (s *FakeSource) stub(query string) (*QueryStub, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stub, ok := s.queries[query]
	return stub, ok
}

type fakeConnection struct {
	ctx      context.Context
	source   *FakeSource
	id       int
	released bool
}

func (c *fakeConnection) Context() context.Context {
	return c.ctx
}

func (c *fakeConnection) ID() int {
	return c.id
}

func (c *fakeConnection) Prepare(query string) (session.Statement, error) {
	if c.released {
		return nil, session.ErrReleased
	}
	stub, ok := c.source.stub(query)
	if !ok {
		c.source.record("prepare-failed")
		return nil, fmt.Errorf("unexpected query %q", query)
	}
	if stub.PrepareErr != nil {
		c.source.record("prepare-failed")
		return nil, stub.PrepareErr
	}
	c.source.record("prepare")
	return &fakeStatement{source: c.source, query: query, stub: stub}, nil
}

func (c *fakeConnection) Release() error {
	if c.released {
		return nil
	}
	c.released = true
	s := c.source
	s.mu.Lock()
	s.released++
	s.trace = append(s.trace, "release")
	s.mu.Unlock()
	return s.ReleaseErr
}

type fakeStatement struct {
	source *FakeSource
	query  string
	stub   *QueryStub
	params []any
}

func (st *fakeStatement) Bind(index int, value any) error {
	if index < 1 {
		return fmt.Errorf("parameter index %d out of range", index)
	}
	for len(st.params) < index {
		st.params = append(st.params, nil)
	}
	st.params[index-1] = value
	return nil
}

func (st *fakeStatement) run(step string) ([][]any, int64, error) {
	s := st.source
	s.mu.Lock()
	s.trace = append(s.trace, step)
	s.executions = append(s.executions, Execution{Query: st.query, Params: append([]any(nil), st.params...)})
	s.mu.Unlock()
	if st.stub.Handler != nil {
		return st.stub.Handler(st.params)
	}
	return st.stub.Rows, st.stub.RowsAffected, st.stub.Err
}

func (st *fakeStatement) Query() (session.Rows, error) {
	rows, _, err := st.run("query")
	if err != nil {
		return nil, err
	}
	r := NewRowsStub(rows...)
	r.onClose = func() { st.source.record("close-rows") }
	return r, nil
}

func (st *fakeStatement) Exec() (session.Result, error) {
	_, affected, err := st.run("exec")
	if err != nil {
		return nil, err
	}
	return result.NewResult(affected), nil
}

func (st *fakeStatement) Close() error {
	st.source.record("close-statement")
	return st.stub.CloseErr
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows    [][]any
	idx     int
	Closed  bool
	onClose func()
}

func (r *RowsStub) Close() error {
	if !r.Closed && r.onClose != nil {
		r.onClose()
	}
	r.Closed = true
	return nil
}

func (r *RowsStub) Err() error {
	return nil
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}

	row := r.rows[r.idx]
	for i, val := range row {
		if i >= len(dest) {
			break
		}

		switch d := dest[i].(type) {
		case *int:
			*d = int(toInt64(val))
		case *int64:
			*d = toInt64(val)
		case **int64:
			if val == nil {
				*d = nil
				continue
			}
			n := toInt64(val)
			*d = &n
		case *int32:
			*d = int32(toInt64(val))
		case *string:
			*d = val.(string)
		case *bool:
			*d = val.(bool)
		case *[]byte:
			*d = val.([]byte)
		case *float64:
			*d = toFloat64(val)
		case *any:
			*d = val
		case sql.Scanner:
			if err := d.Scan(val); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		panic("cannot convert to int64")
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		panic("cannot convert to float64")
	}
}
