package mariadb

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
)

var (
	// ErrConnection matches every ConnectionError.
	ErrConnection = errors.New("connection failed")

	// ErrQuery matches every QueryError.
	ErrQuery = errors.New("query failed")

	// ErrInvalidConfig is returned by Connect before dialing when the
	// configuration cannot describe a session.
	ErrInvalidConfig = errors.New("invalid connection config")

	// ErrEmptyStatement is returned by Query for a blank statement.
	ErrEmptyStatement = errors.New("statement is empty")

	// ErrClosed is returned when a closed Connection or Cursor is used.
	ErrClosed = errors.New("use of closed connection or cursor")
)

// ConnectionError reports an unreachable host, a rejected login, an unknown
// schema or a transport failure after the session was established.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mysql connection %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// QueryError reports a statement the server refused: bad syntax, unknown
// tables or unknown columns.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("mysql query %q: %v", e.Statement, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// ServerCode returns the server error number carried by err, or 0 when err
// did not come from the server.
func ServerCode(err error) uint16 {
	var me *mysql.MySQLError
	if stderrors.As(err, &me) {
		return me.Number
	}
	return 0
}

// classify wraps a failure from a live session. Errors the server sends
// back become QueryErrors; anything else means the session itself broke.
func classify(addr, statement string, err error) error {
	var me *mysql.MySQLError
	switch {
	case stderrors.As(err, &me):
		return &QueryError{Statement: statement, Err: err}
	case stderrors.Is(err, ErrClosed),
		stderrors.Is(err, context.Canceled),
		stderrors.Is(err, context.DeadlineExceeded):
		return err
	}
	return &ConnectionError{Addr: addr, Err: err}
}
