package session

import (
	"time"
)

type ConnectionAcquiredEvent struct {
	Connection Connection
}

type ConnectionReleasedEvent struct {
	Connection Connection
	Err        error
}

type QueryStartedEvent struct {
	Query  string
	Params []any
}

type QueryEndedEvent struct {
	Query        string
	Params       []any
	ResponseTime time.Duration
	Err          error
}
