package main

import (
	"context"
	"flag"
	"io"
	"net"
	"testing"
	"time"

	"github.com/botanyhelp/Ucscquery/config"
	"github.com/botanyhelp/Ucscquery/mariadb"
	"github.com/botanyhelp/Ucscquery/mariadb/mariadbtest"
	"github.com/botanyhelp/Ucscquery/runner"
	"github.com/juju/errors"
)

func newServer(t *testing.T) *mariadbtest.Server {
	t.Helper()
	svr, err := mariadbtest.NewServer(mariadbtest.Config{
		Username: config.DefaultUser,
		Databases: map[string]mariadbtest.Schema{
			"mm9": {"knownCanonical": mariadbtest.Table{
				Columns: []mariadbtest.Column{
					{Name: "chrom", Type: mariadbtest.MYSQL_TYPE_VAR_STRING},
					{Name: "chromStart", Type: mariadbtest.MYSQL_TYPE_LONG, Unsigned: true},
					{Name: "chromEnd", Type: mariadbtest.MYSQL_TYPE_LONG, Unsigned: true},
				},
				Rows: [][]any{
					{"chr1", 3204562, 3661579},
					{"chr1", 4280926, 4399322},
				},
			}},
		},
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = svr.Close() })
	return svr
}

func testConfig(addr string) config.Config {
	return config.Config{
		Host:      addr,
		User:      config.DefaultUser,
		Schema:    config.DefaultSchema,
		Statement: config.DefaultStatement,
		Timeout:   5 * time.Second,
	}
}

func TestRun(t *testing.T) {
	svr := newServer(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	closed := l.Addr().String()
	_ = l.Close()

	tt := []struct {
		name   string
		modify func(*config.Config)
		want   int
	}{
		{name: "Buffered", modify: func(c *config.Config) {}, want: exitOK},
		{name: "Streaming", modify: func(c *config.Config) { c.Streaming = true }, want: exitOK},
		{name: "Progress", modify: func(c *config.Config) { c.Progress = 1 }, want: exitOK},
		{name: "Unreachable host", modify: func(c *config.Config) { c.Host = closed }, want: exitConnection},
		{name: "Unknown schema", modify: func(c *config.Config) { c.Schema = "xx0" }, want: exitConnection},
		{name: "Wrong user", modify: func(c *config.Config) { c.User = "root" }, want: exitConnection},
		{name: "Unknown table", modify: func(c *config.Config) { c.Statement = "SELECT * FROM knownGene" }, want: exitQuery},
		{name: "Syntax error", modify: func(c *config.Config) { c.Statement = "SELEKT 1" }, want: exitQuery},
		{name: "Blank statement", modify: func(c *config.Config) { c.Statement = "" }, want: exitFailure},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(svr.Addr())
			tc.modify(&cfg)
			if got := run(context.Background(), cfg); got != tc.want {
				t.Fatalf("want exit code %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	svr := newServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := run(ctx, testConfig(svr.Addr())); got != exitFailure {
		t.Fatalf("cancelled run: want exit code %d, got %d", exitFailure, got)
	}
}

func TestExitCode(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want int
	}{
		{name: "Nil", err: nil, want: exitOK},
		{name: "Connection", err: &mariadb.ConnectionError{Addr: "host:3306", Err: errors.New("refused")}, want: exitConnection},
		{name: "Query", err: errors.Trace(&mariadb.QueryError{Statement: "SELECT 1", Err: errors.New("bad")}), want: exitQuery},
		{name: "Mismatch", err: errors.Annotate(runner.ErrRowCountMismatch, "reported 3 rows"), want: exitRowCount},
		{name: "Other", err: errors.New("boom"), want: exitFailure},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.want {
				t.Fatalf("want %d, got %d", tc.want, got)
			}
		})
	}
}

func TestStart(t *testing.T) {
	svr := newServer(t)
	noEnv := func(string) (string, bool) { return "", false }

	tt := []struct {
		name string
		args []string
		want int
	}{
		{name: "Unknown flag", args: []string{"-bogus"}, want: exitFailure},
		{name: "Malformed flag value", args: []string{"-timeout", "soon"}, want: exitFailure},
		{name: "Positional argument", args: []string{"-env-file", "", "knownCanonical"}, want: exitFailure},
		{name: "Help", args: []string{"-h"}, want: exitOK},
		{name: "Query", args: []string{"-env-file", "", "-host", svr.Addr(), "-timeout", "5s"}, want: exitOK},
		{name: "Unknown table", args: []string{"-env-file", "", "-host", svr.Addr(), "-statement", "SELECT * FROM knownGene"}, want: exitQuery},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			fs := flag.NewFlagSet("ucscquery", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			if got := start(fs, tc.args, noEnv); got != tc.want {
				t.Fatalf("want exit code %d, got %d", tc.want, got)
			}
		})
	}
}
