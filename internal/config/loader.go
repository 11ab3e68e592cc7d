package config

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	mode Mode
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a configuration Loader for the given mode.
func NewLoader(mode Mode) *Loader {
	return &Loader{mode: mode}
}

// Load parses command-line arguments and configuration files to produce a Config.
// The single positional argument is the target.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand(l.mode)
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults(l.mode)
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	switch positional := flagSet.Args(); len(positional) {
	case 0:
	case 1:
		cfg.Target = strings.TrimSpace(positional[0])
	default:
		return nil, fmt.Errorf("expected a single target, got %d arguments", len(positional))
	}

	if cfg.HTTP.Headers == nil {
		cfg.HTTP.Headers = map[string]string{}
	}
	cfg.Arrival = ArrivalModel(strings.ToLower(string(cfg.Arrival)))

	return &cfg, nil
}

// LoadWorker parses the argument vector built by WorkerArgs.
func (l Loader) LoadWorker(args []string) (*Config, error) {
	cfg, err := l.Load(args)
	if err != nil {
		return nil, err
	}
	if cfg.Worker.RunID == "" {
		return nil, fmt.Errorf("worker mode requires --%s", flagRunID)
	}
	if cfg.Worker.Index < 0 || cfg.Worker.Iterations < 0 {
		return nil, fmt.Errorf("invalid worker assignment: index %d, iterations %d", cfg.Worker.Index, cfg.Worker.Iterations)
	}
	return cfg, nil
}

// WorkerArgs rebuilds the argument vector that replicates every workload
// option of cfg plus its worker assignment. Reporting options stay with the
// orchestrator.
func WorkerArgs(cfg Config) []string {
	args := []string{
		"--requests", strconv.Itoa(cfg.Requests),
		"--concurrency", strconv.Itoa(cfg.Concurrency),
		"--" + flagTimeoutDuration, cfg.Timeout.String(),
		"--verbosity", strconv.Itoa(cfg.Verbosity),
		"--rate", strconv.Itoa(cfg.Rate),
		"--arrival", string(cfg.Arrival),
		"--trace-dir", cfg.TraceDir,
		"--log-format", cfg.LogFormat,
		"--" + flagWorkerIndex, strconv.Itoa(cfg.Worker.Index),
		"--" + flagWorkerIterations, strconv.Itoa(cfg.Worker.Iterations),
		"--" + flagRunID, cfg.Worker.RunID,
	}

	switch cfg.Mode {
	case ModeHTTP:
		h := cfg.HTTP
		args = appendBool(args, "keepalive", h.KeepAlive)
		args = appendString(args, "auth", h.BasicAuth)
		args = appendString(args, "bearer-token", h.BearerToken)
		args = appendString(args, "proxy", h.Proxy)
		args = appendString(args, "proxy-auth", h.ProxyAuth)
		for _, name := range sortedKeys(h.Headers) {
			args = append(args, "--header", name+": "+h.Headers[name])
		}
		for _, cookie := range h.Cookies {
			args = append(args, "--cookie", cookie)
		}
		args = appendBool(args, "head", h.Head)
		args = appendBool(args, "respencoding", h.Compress)
		args = appendString(args, "http-version", h.Version)
		args = appendString(args, "interface", h.Interface)
	case ModeSQL:
		s := cfg.SQL
		args = appendString(args, "client", s.Client)
		args = appendString(args, "user", s.User)
		args = appendString(args, "password", s.Password)
		args = appendString(args, "host", s.Host)
		if s.Port != 0 {
			args = append(args, "--port", strconv.Itoa(s.Port))
		}
		args = appendString(args, "database", s.Database)
		args = appendString(args, "dsn", s.DSN)
		args = appendString(args, "format", s.Format)
	}

	return append(args, "--", cfg.Target)
}

func appendBool(args []string, name string, value bool) []string {
	if !value {
		return args
	}
	return append(args, "--"+name)
}

func appendString(args []string, name, value string) []string {
	if value == "" {
		return args
	}
	return append(args, "--"+name, value)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.Target = strings.TrimSpace(val)
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"requests", "total"}, &cfg.Requests},
		{[]string{"concurrency"}, &cfg.Concurrency},
		{[]string{"verbosity"}, &cfg.Verbosity},
		{[]string{"rate"}, &cfg.Rate},
	}
	for _, f := range ints {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "pollinterval", "poll_interval", "poll-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("pollInterval: %w", err)
		}
		cfg.PollInterval = dur
	}

	if raw, ok := lookupSetting(settings, "arrival"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("arrival: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.Arrival = ArrivalModel(strings.ToLower(val))
		}
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"inprocess", "in_process", "in-process"}, &cfg.InProcess},
		{[]string{"json", "jsonoutput", "json_output", "json-output"}, &cfg.JSONOutput},
		{[]string{"keeptraces", "keep_traces", "keep-traces"}, &cfg.KeepTraces},
	}
	for _, f := range bools {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"csv"}, &cfg.CSVFile},
		{[]string{"label"}, &cfg.Label},
		{[]string{"tracedir", "trace_dir", "trace-dir"}, &cfg.TraceDir},
		{[]string{"logformat", "log_format", "log-format"}, &cfg.LogFormat},
	}
	for _, f := range strs {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "http"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("http: %w", err)
		}
		if err := applyHTTPSettings(&cfg.HTTP, entry); err != nil {
			return fmt.Errorf("http: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "sql"); ok {
		entry, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("sql: %w", err)
		}
		if err := applySQLSettings(&cfg.SQL, entry); err != nil {
			return fmt.Errorf("sql: %w", err)
		}
	}

	return nil
}

func applyHTTPSettings(h *HTTPConfig, settings map[string]interface{}) error {
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if h.Headers == nil {
			h.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			h.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "cookies"); ok {
		cookies, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("cookies: %w", err)
		}
		h.Cookies = cookies
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"keepalive", "keep_alive"}, &h.KeepAlive},
		{[]string{"head"}, &h.Head},
		{[]string{"respencoding", "compress"}, &h.Compress},
	}
	for _, f := range bools {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = val
		}
	}

	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"auth"}, &h.BasicAuth},
		{[]string{"bearertoken", "bearer_token", "bearer-token"}, &h.BearerToken},
		{[]string{"proxy"}, &h.Proxy},
		{[]string{"proxyauth", "proxy_auth", "proxy-auth"}, &h.ProxyAuth},
		{[]string{"httpversion", "http_version", "http-version", "version"}, &h.Version},
		{[]string{"interface"}, &h.Interface},
	}
	for _, f := range strs {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}
	return nil
}

func applySQLSettings(s *SQLConfig, settings map[string]interface{}) error {
	strs := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"client"}, &s.Client},
		{[]string{"user"}, &s.User},
		{[]string{"password"}, &s.Password},
		{[]string{"host"}, &s.Host},
		{[]string{"database"}, &s.Database},
		{[]string{"dsn"}, &s.DSN},
		{[]string{"format"}, &s.Format},
	}
	for _, f := range strs {
		if raw, ok := lookupSetting(settings, f.keys...); ok {
			val, err := asString(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", f.keys[0], err)
			}
			*f.dst = strings.TrimSpace(val)
		}
	}

	if raw, ok := lookupSetting(settings, "port"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("port: %w", err)
		}
		s.Port = val
	}

	if raw, ok := lookupSetting(settings, "skippercentiles", "skip_percentiles", "skip-percentiles"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("skipPercentiles: %w", err)
		}
		s.SkipPercentiles = val
	}
	return nil
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file. Flags that do not exist in the loader's mode
// are never changed and are skipped.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	ints := map[string]*int{
		"requests":           &cfg.Requests,
		"concurrency":        &cfg.Concurrency,
		"verbosity":          &cfg.Verbosity,
		"rate":               &cfg.Rate,
		"port":               &cfg.SQL.Port,
		flagWorkerIndex:      &cfg.Worker.Index,
		flagWorkerIterations: &cfg.Worker.Iterations,
	}
	for name, dst := range ints {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	bools := map[string]*bool{
		"in-process":       &cfg.InProcess,
		"json":             &cfg.JSONOutput,
		"keep-traces":      &cfg.KeepTraces,
		"keepalive":        &cfg.HTTP.KeepAlive,
		"head":             &cfg.HTTP.Head,
		"respencoding":     &cfg.HTTP.Compress,
		"skip-percentiles": &cfg.SQL.SkipPercentiles,
	}
	for name, dst := range bools {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	strs := map[string]*string{
		"csv":          &cfg.CSVFile,
		"label":        &cfg.Label,
		"trace-dir":    &cfg.TraceDir,
		"log-format":   &cfg.LogFormat,
		"auth":         &cfg.HTTP.BasicAuth,
		"bearer-token": &cfg.HTTP.BearerToken,
		"proxy":        &cfg.HTTP.Proxy,
		"proxy-auth":   &cfg.HTTP.ProxyAuth,
		"http-version": &cfg.HTTP.Version,
		"interface":    &cfg.HTTP.Interface,
		"client":       &cfg.SQL.Client,
		"user":         &cfg.SQL.User,
		"password":     &cfg.SQL.Password,
		"host":         &cfg.SQL.Host,
		"database":     &cfg.SQL.Database,
		"dsn":          &cfg.SQL.DSN,
		"format":       &cfg.SQL.Format,
		flagRunID:      &cfg.Worker.RunID,
	}
	for name, dst := range strs {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}

	if fs.Changed("arrival") {
		val, err := fs.GetString("arrival")
		if err != nil {
			return err
		}
		cfg.Arrival = ArrivalModel(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("timeout") {
		val, err := fs.GetInt("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = time.Duration(val) * time.Second
	}
	if fs.Changed(flagTimeoutDuration) {
		val, err := fs.GetDuration(flagTimeoutDuration)
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("poll-interval") {
		val, err := fs.GetDuration("poll-interval")
		if err != nil {
			return err
		}
		cfg.PollInterval = val
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = vals
	}
	if fs.Changed("header") {
		vals, err := fs.GetStringArray("header")
		if err != nil {
			return err
		}
		if cfg.HTTP.Headers == nil {
			cfg.HTTP.Headers = map[string]string{}
		}
		for _, raw := range vals {
			key, value, err := parseHeader(raw)
			if err != nil {
				return err
			}
			cfg.HTTP.Headers[key] = value
		}
	}
	if fs.Changed("cookie") {
		vals, err := fs.GetStringArray("cookie")
		if err != nil {
			return err
		}
		cfg.HTTP.Cookies = append(cfg.HTTP.Cookies, vals...)
	}

	return nil
}

// parseHeader accepts "Name: value" and falls back to "Name=value".
func parseHeader(raw string) (string, string, error) {
	key, value, ok := strings.Cut(raw, ":")
	if !ok {
		key, value, ok = strings.Cut(raw, "=")
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid header %q, expected 'Name: value'", raw)
	}
	return http.CanonicalHeaderKey(key), strings.TrimSpace(value), nil
}
