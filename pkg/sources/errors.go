// Package sources provides shared plumbing for the upstream feed adapters.
package sources

import "errors"

var (
	// ErrStaleConnection indicates no message arrived within the idle timeout.
	ErrStaleConnection = errors.New("stale connection: no messages within idle timeout")
	// ErrConnectionClosed indicates the peer closed the connection.
	ErrConnectionClosed = errors.New("connection closed by peer")
)
