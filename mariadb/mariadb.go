// Package mariadb is a single session MySQL/MariaDB client.
//
// A Connection owns exactly one server session and runs statements through
// it. Each statement yields a Cursor that hands out rows one at a time until
// it returns iterator.Done.
//
// Features
//   - One session per Connection. database/sql is pinned to a single
//     connection so the cursor and the session share a lifetime.
//   - Buffered cursors (the default) drain the result set on Query and
//     report an exact row count. Streaming cursors read lazily and report
//     UnknownRowCount.
//   - Failures are classified into ConnectionError and QueryError.
//
// The wire protocol itself is handled by github.com/go-sql-driver/mysql.
// Information about the protocol
//   - https://dev.mysql.com/doc/internals/en/client-server-protocol.html
//   - https://mariadb.com/kb/en/clientserver-protocol/
package mariadb
