package mariadb

import (
	"context"
	"database/sql"

	"github.com/juju/errors"
	"google.golang.org/api/iterator"
)

// Cursor iterates the result set of one statement. Next returns
// iterator.Done once every row has been handed out.
type Cursor struct {
	addr      string
	statement string
	columns   []Column

	// rows is set for streaming cursors only.
	rows   *sql.Rows
	buffer []Row

	count   int64
	fetched int64
	closed  bool
}

func newCursor(addr, statement string, rows *sql.Rows, streaming bool) (*Cursor, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, classify(addr, statement, err)
	}

	c := &Cursor{
		addr:      addr,
		statement: statement,
		columns:   make([]Column, len(types)),
	}
	for i, t := range types {
		nullable, _ := t.Nullable()
		c.columns[i] = Column{
			Name:         t.Name(),
			DatabaseType: t.DatabaseTypeName(),
			Nullable:     nullable,
		}
	}

	if streaming {
		c.rows = rows
		c.count = UnknownRowCount
		return c, nil
	}

	defer rows.Close()
	for rows.Next() {
		row, err := scanRow(rows, len(c.columns))
		if err != nil {
			return nil, classify(addr, statement, err)
		}
		c.buffer = append(c.buffer, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(addr, statement, err)
	}
	c.count = int64(len(c.buffer))
	return c, nil
}

// Statement returns the statement the cursor was opened for.
func (c *Cursor) Statement() string { return c.statement }

// Columns describes the projection of the result set.
func (c *Cursor) Columns() []Column { return c.columns }

// RowCount returns the number of rows in a buffered result set, or
// UnknownRowCount for a streaming one.
func (c *Cursor) RowCount() int64 { return c.count }

// Fetched returns how many rows Next has returned so far.
func (c *Cursor) Fetched() int64 { return c.fetched }

// Next returns the next row in server order, or iterator.Done when the
// result set is exhausted.
func (c *Cursor) Next(ctx context.Context) (Row, error) {
	if c.closed {
		return nil, errors.Trace(ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.rows == nil {
		if len(c.buffer) == 0 {
			return nil, iterator.Done
		}
		row := c.buffer[0]
		c.buffer[0] = nil
		c.buffer = c.buffer[1:]
		c.fetched++
		return row, nil
	}

	if !c.rows.Next() {
		err := c.rows.Err()
		_ = c.rows.Close()
		if err != nil {
			return nil, classify(c.addr, c.statement, err)
		}
		return nil, iterator.Done
	}
	row, err := scanRow(c.rows, len(c.columns))
	if err != nil {
		return nil, classify(c.addr, c.statement, err)
	}
	c.fetched++
	return row, nil
}

// Close discards unread rows. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.buffer = nil
	if c.rows != nil {
		if err := c.rows.Close(); err != nil {
			return classify(c.addr, c.statement, err)
		}
	}
	return nil
}

func scanRow(rows *sql.Rows, n int) (Row, error) {
	row := make(Row, n)
	dest := make([]any, n)
	for i := range row {
		dest[i] = &row[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	return row.normalize(), nil
}
