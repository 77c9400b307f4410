package main

import (
	"context"
	stderrors "errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/botanyhelp/Ucscquery/config"
	"github.com/botanyhelp/Ucscquery/mariadb"
	"github.com/botanyhelp/Ucscquery/runner"
	"github.com/golang/glog"
	"github.com/juju/errors"
)

const (
	exitOK = iota
	exitFailure
	exitConnection
	exitQuery
	exitRowCount
)

func main() {
	// glog registers -v and -logtostderr on flag.CommandLine; keep them
	// but report bad flags as configuration errors instead of exiting 2.
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	code := start(flag.CommandLine, os.Args[1:], os.LookupEnv)
	glog.Flush()
	os.Exit(code)
}

// start loads the configuration from fs and args, runs the statement until
// it completes or a signal arrives, and returns the exit code.
func start(fs *flag.FlagSet, args []string, lookup config.LookupFunc) int {
	cfg, err := config.Load(fs, args, lookup)
	if stderrors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		glog.Errorf("configuration: %v", err)
		return exitFailure
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(sc)

	go func() {
		select {
		case sig := <-sc:
			glog.Infof("got signal %v, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return run(ctx, cfg)
}

// run executes the configured statement once and returns the exit code.
func run(ctx context.Context, cfg config.Config) int {
	r, err := runner.New(runner.Config{
		Dial:      runner.Dialer(cfg.Connection()),
		Statement: cfg.Statement,
		Progress:  cfg.Progress,
	})
	if err != nil {
		glog.Errorf("runner: %v", err)
		return exitFailure
	}

	glog.Infof("connecting to %s as %s, schema %s", cfg.Host, cfg.User, cfg.Schema)
	summary, err := r.Run(ctx)
	if err != nil {
		glog.Errorf("%s", errors.ErrorStack(err))
		return exitCode(err)
	}

	if summary.RowCount == mariadb.UnknownRowCount {
		glog.Infof("%q: read %d rows (%d columns) in %v",
			summary.Statement, summary.Fetched, len(summary.Columns), summary.Elapsed)
	} else {
		glog.Infof("%q: read %d of %d rows (%d columns) in %v",
			summary.Statement, summary.Fetched, summary.RowCount, len(summary.Columns), summary.Elapsed)
	}
	return exitOK
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case stderrors.Is(err, runner.ErrRowCountMismatch):
		return exitRowCount
	case stderrors.Is(err, mariadb.ErrQuery):
		return exitQuery
	case stderrors.Is(err, mariadb.ErrConnection):
		return exitConnection
	default:
		return exitFailure
	}
}
