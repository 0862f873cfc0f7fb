package deferred

import "context"

type State int

const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Deferred is the eventual outcome of an asynchronous operation.
// Resolve and Reject report whether they completed the deferred; only
// the first completion is kept.
type Deferred[T any] interface {
	Resolve(T) bool
	Reject(error) bool
	Then(func(T) (any, error), func(error) (any, error)) Deferred[any]
	Await(context.Context) (T, error)
	Done() <-chan struct{}
	State() State
	OccurredErr() error
}
