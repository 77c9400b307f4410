package mariadb

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

// DefaultPort is used when Config.Uri carries no port.
const DefaultPort = "3306"

/**
 * Connection configuration.
 * Uri in format 'host:port' or 'host'.
 */
type Config struct {
	Uri      string
	Username string
	Password string
	Database string

	// Streaming makes Query return cursors that read rows lazily from the
	// server instead of draining the result set up front.
	Streaming bool

	// DialTimeout bounds TCP connect, handshake and authentication. Zero
	// waits forever.
	DialTimeout time.Duration
}

// Addr returns Uri with the default port filled in.
func (c Config) Addr() (string, error) {
	uri := strings.TrimSpace(c.Uri)
	if uri == "" {
		return "", errors.Annotate(ErrInvalidConfig, "empty uri")
	}
	if _, _, err := net.SplitHostPort(uri); err == nil {
		return uri, nil
	}
	if strings.HasPrefix(uri, "[") && strings.HasSuffix(uri, "]") {
		uri = strings.Trim(uri, "[]")
	}
	return net.JoinHostPort(uri, DefaultPort), nil
}

/**
 * Describe DB connection
 */
type Connection struct {
	config Config
	addr   string
	db     *sql.DB
	conn   *sql.Conn
	cursor *Cursor
	closed bool
}

/**
 * Create new DB connection: dial, authenticate and select the schema.
 */
func Connect(ctx context.Context, config Config) (*Connection, error) {
	addr, err := config.Addr()
	if err != nil {
		return nil, err
	}
	if config.Username == "" {
		return nil, errors.Annotate(ErrInvalidConfig, "empty username")
	}

	dsn := mysql.NewConfig()
	dsn.Net = "tcp"
	dsn.Addr = addr
	dsn.User = config.Username
	dsn.Passwd = config.Password
	dsn.DBName = config.Database
	dsn.Timeout = config.DialTimeout

	connector, err := mysql.NewConnector(dsn)
	if err != nil {
		return nil, errors.Annotatef(ErrInvalidConfig, "%v", err)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	dialCtx := ctx
	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	conn, err := db.Conn(dialCtx)
	if err != nil {
		_ = db.Close()
		// Cancellation by the caller is not a connection failure.
		if cerr := ctx.Err(); cerr != nil {
			return nil, errors.Trace(cerr)
		}
		return nil, &ConnectionError{Addr: addr, Err: err}
	}

	glog.V(1).Infof("connected to %s as %s, schema %q", addr, config.Username, config.Database)
	return &Connection{
		config: config,
		addr:   addr,
		db:     db,
		conn:   conn,
	}, nil
}

// Addr returns the server address the connection was dialed with.
func (c *Connection) Addr() string {
	return c.addr
}

// Query runs statement and returns a cursor over its result set. A cursor
// still open from an earlier Query is closed first; a session serves one
// result set at a time.
func (c *Connection) Query(ctx context.Context, statement string) (*Cursor, error) {
	if c.closed {
		return nil, errors.Trace(ErrClosed)
	}
	if strings.TrimSpace(statement) == "" {
		return nil, &QueryError{Statement: statement, Err: ErrEmptyStatement}
	}
	if c.cursor != nil {
		if err := c.cursor.Close(); err != nil {
			glog.Warningf("closing previous cursor: %v", err)
		}
		c.cursor = nil
	}

	glog.V(2).Infof("query %s: %s", c.addr, statement)
	rows, err := c.conn.QueryContext(ctx, statement)
	if err != nil {
		return nil, classify(c.addr, statement, err)
	}

	cursor, err := newCursor(c.addr, statement, rows, c.config.Streaming)
	if err != nil {
		return nil, err
	}
	c.cursor = cursor
	return cursor, nil
}

// Close releases the open cursor, the session and the pool behind it. It is
// safe to call more than once.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.cursor != nil {
		errs = append(errs, c.cursor.Close())
		c.cursor = nil
	}
	errs = append(errs, c.conn.Close(), c.db.Close())
	if err := stderrors.Join(errs...); err != nil {
		return &ConnectionError{Addr: c.addr, Err: err}
	}
	glog.V(1).Infof("disconnected from %s", c.addr)
	return nil
}
