// Package sqlexec implements the SQL task executor used by ezmyreplay.
package sqlexec

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ezbench/ezbench/internal/config"
)

// ErrDriverUnavailable is returned when the requested client library is not
// registered with database/sql.
var ErrDriverUnavailable = errors.New("sql client library is not available")

var defaultPorts = map[string]int{
	config.ClientMySQL:    3306,
	config.ClientPGX:      5432,
	config.ClientPostgres: 5432,
}

// CheckClient verifies that client is a registered database/sql driver.
func CheckClient(client string) error {
	if !slices.Contains(sql.Drivers(), client) {
		return fmt.Errorf("%w: %s", ErrDriverUnavailable, client)
	}
	return nil
}

// DSN returns the data source name for s. An explicit DSN wins.
func DSN(s config.SQLConfig) (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}

	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == 0 {
		port = defaultPorts[s.Client]
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	switch s.Client {
	case config.ClientMySQL:
		cfg := mysql.NewConfig()
		cfg.User = s.User
		cfg.Passwd = s.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = s.Database
		return cfg.FormatDSN(), nil
	case config.ClientPGX, config.ClientPostgres:
		u := url.URL{Scheme: "postgres", Host: addr, Path: "/" + s.Database}
		if s.User != "" {
			if s.Password != "" {
				u.User = url.UserPassword(s.User, s.Password)
			} else {
				u.User = url.User(s.User)
			}
		}
		return u.String(), nil
	case config.ClientSQLite:
		if s.Database == "" {
			return "", errors.New("sqlite3 requires --database with the database file")
		}
		return s.Database, nil
	default:
		return "", fmt.Errorf("client %q is not supported", s.Client)
	}
}

// redact hides credentials in target descriptions used in errors and logs.
func redact(s config.SQLConfig) string {
	if s.DSN != "" {
		return s.Client + " (explicit dsn)"
	}
	if s.Client == config.ClientSQLite {
		return s.Database
	}
	host := s.Host
	if host == "" {
		host = "localhost"
	}
	port := s.Port
	if port == 0 {
		port = defaultPorts[s.Client]
	}
	return fmt.Sprintf("%s://%s/%s", s.Client, net.JoinHostPort(host, strconv.Itoa(port)), s.Database)
}
