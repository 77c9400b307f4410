// Package config resolves ucscquery settings from flags, the process
// environment and an optional .env file, in that order of precedence.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/botanyhelp/Ucscquery/mariadb"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
)

const (
	DefaultHost      = "genome-mysql.soe.ucsc.edu"
	DefaultUser      = "genome"
	DefaultSchema    = "mm9"
	DefaultStatement = "SELECT * FROM knownCanonical"
	DefaultTimeout   = 30 * time.Second
	DefaultEnvFile   = ".env"

	envPrefix = "UCSCQUERY_"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
)

// LookupFunc reads one environment variable; os.LookupEnv in production.
type LookupFunc func(key string) (string, bool)

// Config is the resolved program configuration.
type Config struct {
	Host      string
	User      string
	Password  string
	Schema    string
	Statement string
	Streaming bool
	Timeout   time.Duration
	Progress  int64
	EnvFile   string
}

// Connection returns the session settings for mariadb.Connect.
func (c Config) Connection() mariadb.Config {
	return mariadb.Config{
		Uri:         c.Host,
		Username:    c.User,
		Password:    c.Password,
		Database:    c.Schema,
		Streaming:   c.Streaming,
		DialTimeout: c.Timeout,
	}
}

type setting struct {
	name  string
	usage string
	value flag.Value
}

// Load registers the program flags on fs, parses args and resolves every
// setting. A missing default .env file is ignored; a missing file named
// with -env-file is an error.
func Load(fs *flag.FlagSet, args []string, lookup LookupFunc) (Config, error) {
	cfg := Config{
		Host:      DefaultHost,
		User:      DefaultUser,
		Schema:    DefaultSchema,
		Statement: DefaultStatement,
		Timeout:   DefaultTimeout,
		EnvFile:   DefaultEnvFile,
	}

	settings := []setting{
		{"host", "database server, host[:port]", stringValue{&cfg.Host}},
		{"user", "database user", stringValue{&cfg.User}},
		{"password", "database password, empty for anonymous access", stringValue{&cfg.Password}},
		{"schema", "schema to select, one per genome assembly (mm9, hg19, ...)", stringValue{&cfg.Schema}},
		{"statement", "SQL statement to run", stringValue{&cfg.Statement}},
		{"streaming", "read rows lazily instead of buffering the result set", boolValue{&cfg.Streaming}},
		{"timeout", "connect timeout, 0 waits forever", durationValue{&cfg.Timeout}},
		{"progress", "log progress at -v=1 every N rows, 0 disables", intValue{&cfg.Progress}},
	}
	for _, s := range settings {
		fs.Var(s.value, s.name, s.usage)
	}
	fs.StringVar(&cfg.EnvFile, "env-file", DefaultEnvFile, "dotenv file with UCSCQUERY_* settings")

	if err := fs.Parse(args); err != nil {
		return Config{}, errors.Trace(err)
	}
	if fs.NArg() > 0 {
		return Config{}, errors.Annotatef(ErrInvalid, "unexpected arguments %q", fs.Args())
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	file, err := readEnvFile(cfg.EnvFile, explicit["env-file"])
	if err != nil {
		return Config{}, err
	}

	for _, s := range settings {
		if explicit[s.name] {
			continue
		}
		key := envKey(s.name)
		v, ok := lookup(key)
		if !ok {
			v, ok = file[key]
		}
		if !ok {
			continue
		}
		if err := s.value.Set(v); err != nil {
			return Config{}, errors.Annotatef(ErrInvalid, "%s=%q: %v", key, v, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings the session and statement need.
func (c Config) Validate() error {
	required := []struct{ name, value string }{
		{"host", c.Host},
		{"user", c.User},
		{"schema", c.Schema},
		{"statement", c.Statement},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.Annotatef(ErrInvalid, "%s is empty", r.name)
		}
	}
	if c.Timeout < 0 {
		return errors.Annotatef(ErrInvalid, "timeout %v is negative", c.Timeout)
	}
	if c.Progress < 0 {
		return errors.Annotatef(ErrInvalid, "progress %d is negative", c.Progress)
	}
	return nil
}

func readEnvFile(path string, required bool) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil, nil
		}
		return nil, errors.Annotatef(ErrInvalid, "env file: %v", err)
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Annotatef(ErrInvalid, "env file %s: %v", path, err)
	}
	return values, nil
}

func envKey(name string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

type stringValue struct{ p *string }

func (v stringValue) String() string {
	if v.p == nil {
		return ""
	}
	return *v.p
}

func (v stringValue) Set(s string) error {
	*v.p = s
	return nil
}

type boolValue struct{ p *bool }

func (v boolValue) String() string {
	if v.p == nil {
		return "false"
	}
	return strconv.FormatBool(*v.p)
}

func (v boolValue) Set(s string) error {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*v.p = b
	return nil
}

func (v boolValue) IsBoolFlag() bool { return true }

type durationValue struct{ p *time.Duration }

func (v durationValue) String() string {
	if v.p == nil {
		return "0s"
	}
	return v.p.String()
}

func (v durationValue) Set(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*v.p = d
	return nil
}

type intValue struct{ p *int64 }

func (v intValue) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatInt(*v.p, 10)
}

func (v intValue) Set(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*v.p = n
	return nil
}
