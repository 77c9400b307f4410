package runner

import (
	"context"
	stderrors "errors"
	"iter"
	"time"

	"github.com/botanyhelp/Ucscquery/mariadb"
	"github.com/golang/glog"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
)

var (
	// ErrRowCountMismatch means the cursor ran dry before delivering the
	// row count it reported.
	ErrRowCountMismatch = errors.New("cursor exhausted before reported row count")

	// ErrNoStatement is returned by New when no statement is configured.
	ErrNoStatement = errors.New("no statement configured")

	// ErrNoDialer is returned by New when Config.Dial is nil.
	ErrNoDialer = errors.New("no dialer configured")
)

// Cursor is the part of a result cursor the runner drives. Next returns
// iterator.Done when no rows remain.
type Cursor interface {
	RowCount() int64
	Columns() []mariadb.Column
	Next(ctx context.Context) (mariadb.Row, error)
	Close() error
}

// Session is one connected database session.
type Session interface {
	Execute(ctx context.Context, statement string) (Cursor, error)
	Close() error
}

// DialFunc opens a Session.
type DialFunc func(ctx context.Context) (Session, error)

// Config controls a Runner.
type Config struct {
	// Dial opens the session the statement runs on.
	Dial DialFunc

	// Statement is the SQL text to run.
	Statement string

	// Progress logs a line at -v=1 every Progress rows. Zero disables it.
	Progress int64
}

// Summary describes a completed run.
type Summary struct {
	Statement string
	Columns   []mariadb.Column
	// RowCount is what the cursor reported, or mariadb.UnknownRowCount.
	RowCount int64
	Fetched  int64
	Elapsed  time.Duration
}

// Runner connects, runs one statement and reads every row it returns.
type Runner struct {
	dial      DialFunc
	statement string
	progress  int64
}

// New validates cfg and returns a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Dial == nil {
		return nil, ErrNoDialer
	}
	if cfg.Statement == "" {
		return nil, ErrNoStatement
	}
	return &Runner{dial: cfg.Dial, statement: cfg.Statement, progress: cfg.Progress}, nil
}

// Run opens a session, executes the statement and reads every row,
// discarding it. The cursor and session are closed on every path. On a
// row count mismatch the returned Summary still reports what was read.
func (r *Runner) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	summary.Statement = r.statement
	summary.RowCount = mariadb.UnknownRowCount
	defer func() { summary.Elapsed = time.Since(start) }()

	session, err := r.dial(ctx)
	if err != nil {
		return summary, errors.Trace(err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = errors.Trace(cerr)
		}
	}()

	cursor, err := session.Execute(ctx, r.statement)
	if err != nil {
		return summary, errors.Trace(err)
	}
	defer func() {
		if cerr := cursor.Close(); cerr != nil && err == nil {
			err = errors.Trace(cerr)
		}
	}()

	summary.Columns = cursor.Columns()
	summary.RowCount = cursor.RowCount()
	glog.V(1).Infof("executed %q: %d columns, row count %d", r.statement, len(summary.Columns), summary.RowCount)

	for _, err := range Rows(ctx, cursor) {
		if err != nil {
			return summary, err
		}
		summary.Fetched++
		if r.progress > 0 && summary.Fetched%r.progress == 0 {
			glog.V(1).Infof("fetched %d rows", summary.Fetched)
		}
	}
	return summary, nil
}

// Rows returns the rows of cursor as a lazy sequence. The sequence ends at
// iterator.Done. When the cursor reports a row count, Next is called at
// most that many times; running dry earlier yields an error wrapping
// ErrRowCountMismatch. A sequence can be ranged over only once; later
// ranges yield nothing.
func Rows(ctx context.Context, cursor Cursor) iter.Seq2[mariadb.Row, error] {
	consumed := false
	return func(yield func(mariadb.Row, error) bool) {
		if consumed {
			return
		}
		consumed = true

		expected := cursor.RowCount()
		var fetched int64
		for expected < 0 || fetched < expected {
			row, err := cursor.Next(ctx)
			if stderrors.Is(err, iterator.Done) {
				if expected >= 0 {
					yield(nil, errors.Annotatef(ErrRowCountMismatch,
						"reported %d rows, cursor had %d", expected, fetched))
				}
				return
			}
			if err != nil {
				yield(nil, errors.Trace(err))
				return
			}
			fetched++
			if !yield(row, nil) {
				return
			}
		}
	}
}
