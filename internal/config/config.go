package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"
)

// Mode selects which task executor a configuration drives.
type Mode string

const (
	ModeHTTP Mode = "http"
	ModeSQL  Mode = "sql"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Supported SQL client libraries, keyed by database/sql driver name.
const (
	ClientMySQL    = "mysql"
	ClientPGX      = "pgx"
	ClientPostgres = "postgres"
	ClientSQLite   = "sqlite3"
)

// Statement source formats.
const (
	FormatSlowQueryLog = "slowquerylog"
	FormatJSON         = "json"
)

// HTTP versions accepted by --http-version.
const (
	HTTPVersion10 = "1.0"
	HTTPVersion11 = "1.1"
	HTTPVersion2  = "2"
)

// DefaultPollInterval is how often the orchestrator checks worker liveness.
const DefaultPollInterval = time.Second

// Config describes one benchmark run. It is built once by a Loader and
// passed by value afterwards.
type Config struct {
	Mode Mode `mapstructure:"-"`

	// Target is the URL for HTTP runs and the statement log for SQL runs.
	Target       string        `mapstructure:"target"`
	Requests     int           `mapstructure:"requests"`
	Concurrency  int           `mapstructure:"concurrency"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Verbosity    int           `mapstructure:"verbosity"`
	Rate         int           `mapstructure:"rate"`
	Arrival      ArrivalModel  `mapstructure:"arrival"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	InProcess    bool          `mapstructure:"in_process"`

	JSONOutput bool     `mapstructure:"json_output"`
	CSVFile    string   `mapstructure:"csv"`
	Label      string   `mapstructure:"label"`
	Thresholds []string `mapstructure:"thresholds"`
	TraceDir   string   `mapstructure:"trace_dir"`
	KeepTraces bool     `mapstructure:"keep_traces"`
	LogFormat  string   `mapstructure:"log_format"`
	ConfigFile string   `mapstructure:"-"`

	HTTP HTTPConfig `mapstructure:"http"`
	SQL  SQLConfig  `mapstructure:"sql"`

	Worker WorkerConfig `mapstructure:"-"`
}

type HTTPConfig struct {
	KeepAlive   bool              `mapstructure:"keepalive"`
	BasicAuth   string            `mapstructure:"auth"`
	BearerToken string            `mapstructure:"bearer_token"`
	Proxy       string            `mapstructure:"proxy"`
	ProxyAuth   string            `mapstructure:"proxy_auth"`
	Headers     map[string]string `mapstructure:"headers"`
	Cookies     []string          `mapstructure:"cookies"`
	Head        bool              `mapstructure:"head"`
	Compress    bool              `mapstructure:"respencoding"`
	Version     string            `mapstructure:"http_version"`
	Interface   string            `mapstructure:"interface"`
}

type SQLConfig struct {
	Client          string `mapstructure:"client"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	DSN             string `mapstructure:"dsn"`
	Format          string `mapstructure:"format"`
	SkipPercentiles bool   `mapstructure:"skip_percentiles"`
}

// WorkerConfig carries the assignment of a worker process. It is only set
// when the configuration was loaded in worker mode.
type WorkerConfig struct {
	Index      int
	Iterations int
	RunID      string
}

// Defaults returns the configuration used before files and flags apply.
func Defaults(mode Mode) Config {
	cfg := Config{
		Mode:         mode,
		Requests:     1,
		Concurrency:  1,
		Verbosity:    1,
		Arrival:      ArrivalModelUniform,
		PollInterval: DefaultPollInterval,
		TraceDir:     os.TempDir(),
		LogFormat:    "console",
		HTTP: HTTPConfig{
			Headers: map[string]string{},
			Version: HTTPVersion11,
		},
		SQL: SQLConfig{
			Client: ClientMySQL,
			Format: FormatSlowQueryLog,
		},
	}
	return cfg
}

// ForWorker returns a copy of c carrying a worker assignment.
func (c Config) ForWorker(index, iterations int, runID string) Config {
	c.Worker = WorkerConfig{Index: index, Iterations: iterations, RunID: runID}
	c.HTTP.Headers = copyHeaders(c.HTTP.Headers)
	c.HTTP.Cookies = append([]string(nil), c.HTTP.Cookies...)
	return c
}

// TracingEnabled reports whether workers write per-trial trace files.
func (c Config) TracingEnabled() bool {
	return c.Verbosity >= 4 && c.TraceDir != ""
}

func copyHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	switch c.Mode {
	case ModeHTTP:
		issues = append(issues, validateHTTP(c.Target, c.HTTP)...)
	case ModeSQL:
		issues = append(issues, validateSQL(c.Target, c.SQL)...)
	default:
		issues = append(issues, fmt.Sprintf("mode %q is not supported", c.Mode))
	}

	if c.Requests < 1 {
		issues = append(issues, "requests must be >= 1")
	}
	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Verbosity < 0 {
		issues = append(issues, "verbosity must be >= 0")
	}
	if c.PollInterval <= 0 {
		issues = append(issues, "poll interval must be > 0")
	}
	switch c.Arrival {
	case ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival model %q is not supported", c.Arrival))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists non-fatal concerns about the configuration.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Concurrency > 0 && c.Requests%c.Concurrency != 0 {
		warnings = append(warnings, fmt.Sprintf("%d requests do not divide evenly across %d workers; %d will not be executed",
			c.Requests, c.Concurrency, c.Requests%c.Concurrency))
	}
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("high concurrency configured (%d workers); ensure you have authorization to test the target system", c.Concurrency))
	}
	if c.Mode == ModeHTTP && c.HTTP.Version == HTTPVersion10 && c.HTTP.KeepAlive {
		warnings = append(warnings, "keepalive is ignored with HTTP/1.0")
	}
	return warnings
}

func validateHTTP(target string, h HTTPConfig) []string {
	var issues []string
	if strings.TrimSpace(target) == "" {
		issues = append(issues, "target URL is required (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil {
		issues = append(issues, fmt.Sprintf("target URL is invalid: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("target URL scheme %q is not supported", u.Scheme))
	} else if u.Host == "" {
		issues = append(issues, "target URL has no host")
	}

	switch h.Version {
	case HTTPVersion10, HTTPVersion11, HTTPVersion2:
	default:
		issues = append(issues, fmt.Sprintf("http version %q is not supported (1.0, 1.1 or 2)", h.Version))
	}
	if h.BasicAuth != "" && !strings.Contains(h.BasicAuth, ":") {
		issues = append(issues, "auth must be in user:password form")
	}
	if h.ProxyAuth != "" && !strings.Contains(h.ProxyAuth, ":") {
		issues = append(issues, "proxy auth must be in user:password form")
	}
	if h.ProxyAuth != "" && h.Proxy == "" {
		issues = append(issues, "proxy auth requires a proxy")
	}
	if h.Proxy != "" {
		if _, _, err := net.SplitHostPort(h.Proxy); err != nil {
			issues = append(issues, fmt.Sprintf("proxy must be host:port: %v", err))
		}
	}
	if h.BasicAuth != "" && h.BearerToken != "" {
		issues = append(issues, "auth and bearer token are mutually exclusive")
	}
	if h.Interface != "" && net.ParseIP(h.Interface) == nil {
		issues = append(issues, fmt.Sprintf("interface %q is not an IP address", h.Interface))
	}
	return issues
}

func validateSQL(target string, s SQLConfig) []string {
	var issues []string
	if strings.TrimSpace(target) == "" {
		issues = append(issues, "log file is required (use --help for usage information)")
	} else if info, err := os.Stat(target); err != nil {
		issues = append(issues, fmt.Sprintf("log file is not readable: %v", err))
	} else if info.IsDir() {
		issues = append(issues, fmt.Sprintf("log file %s is a directory", target))
	}

	switch s.Client {
	case ClientMySQL, ClientPGX, ClientPostgres, ClientSQLite:
	default:
		issues = append(issues, fmt.Sprintf("client %q is not supported (mysql, pgx, postgres or sqlite3)", s.Client))
	}
	switch s.Format {
	case FormatSlowQueryLog, FormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("format %q is not supported (slowquerylog or json)", s.Format))
	}
	if s.Port < 0 || s.Port > 65535 {
		issues = append(issues, "port must be between 0 and 65535")
	}
	return issues
}
