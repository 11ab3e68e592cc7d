package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Hidden flags carrying a worker assignment.
const (
	flagWorkerIndex      = "worker-index"
	flagWorkerIterations = "worker-iterations"
	flagRunID            = "run-id"
	flagTimeoutDuration  = "timeout-duration"
)

// newFlagCommand creates a cobra command with all flags of mode configured.
func newFlagCommand(mode Mode) *cobra.Command {
	use := "ezab [flags] <url>"
	if mode == ModeSQL {
		use = "ezmyreplay [flags] <logfile>"
	}
	cmd := &cobra.Command{
		Use:           use,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags(), mode)
	return cmd
}

// configureFlags sets up all CLI flags of mode on the provided flag set.
func configureFlags(flags *pflag.FlagSet, mode Mode) {
	def := Defaults(mode)

	// Load control flags
	flags.IntP("requests", "n", def.Requests, "Total number of trials, divided evenly across workers")
	flags.IntP("concurrency", "c", def.Concurrency, "Number of concurrent workers")
	flags.IntP("verbosity", "v", def.Verbosity, "Verbosity level (0-4); 4 writes per-worker trace files")
	flags.Int("rate", def.Rate, "Trials per second limit per worker (0 means unlimited)")
	flags.String("arrival", string(def.Arrival), "Arrival model used when pacing trials (uniform or poisson)")
	flags.Duration("poll-interval", def.PollInterval, "How often worker liveness is checked")
	flags.Bool("in-process", false, "Run workers as goroutines instead of processes")

	// Output flags
	flags.Bool("json", false, "Emit the aggregate report as JSON")
	flags.String("csv", "", "Append a summary row to this CSV file")
	flags.String("label", "", "Label written in the CSV row")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'duration:p95 < 500')")
	flags.String("trace-dir", def.TraceDir, "Directory for per-worker trace files")
	flags.Bool("keep-traces", false, "Keep per-worker trace files after the run")
	flags.String("log-format", def.LogFormat, "Log format on stderr (console or json)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	switch mode {
	case ModeHTTP:
		flags.IntP("timeout", "t", 0, "Per-request timeout in seconds (0 means none)")
		flags.BoolP("keepalive", "k", false, "Reuse connections between requests")
		flags.StringP("auth", "A", "", "Basic authentication credentials (user:password)")
		flags.String("bearer-token", "", "Bearer token sent in the Authorization header")
		flags.StringP("proxy", "X", "", "Proxy server (host:port)")
		flags.StringP("proxy-auth", "P", "", "Proxy authentication credentials (user:password)")
		flags.StringArrayP("header", "H", nil, "Additional request header, 'Name: value' (repeatable)")
		flags.StringArrayP("cookie", "C", nil, "Cookie, 'name=value' (repeatable)")
		flags.BoolP("head", "i", false, "Send HEAD requests instead of GET")
		flags.Bool("respencoding", false, "Ask for compressed responses (gzip, deflate)")
		flags.String("http-version", def.HTTP.Version, "HTTP version to use (1.0, 1.1 or 2)")
		flags.String("interface", "", "Local IP address to send requests from")
	case ModeSQL:
		flags.IntP("timeout", "t", 0, "Per-statement timeout in seconds (0 means none)")
		flags.StringP("user", "u", "", "Database user")
		flags.StringP("password", "p", "", "Database password")
		flags.StringP("host", "h", "", "Database host")
		flags.IntP("port", "P", 0, "Database port (0 means the client default)")
		flags.StringP("database", "D", "", "Database name; USE statements are skipped when set")
		flags.String("client", def.SQL.Client, "Client library (mysql, pgx, postgres or sqlite3)")
		flags.String("dsn", "", "Explicit data source name, overrides user/password/host/port/database")
		flags.String("format", def.SQL.Format, "Log format (slowquerylog or json)")
		flags.Bool("skip-percentiles", false, "Leave the percentile table out of the report")
	}

	flags.Int(flagWorkerIndex, 0, "")
	flags.Int(flagWorkerIterations, 0, "")
	flags.String(flagRunID, "", "")
	// -t only takes whole seconds; config files may set any duration.
	flags.Duration(flagTimeoutDuration, 0, "")
	for _, name := range []string{flagWorkerIndex, flagWorkerIterations, flagRunID, flagTimeoutDuration} {
		_ = flags.MarkHidden(name)
	}
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}
