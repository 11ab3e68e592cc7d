package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/runner"
	"github.com/ezbench/ezbench/internal/slowlog"
)

const replayLog = `# Time: 2024-03-01T10:00:00.000000Z
# Query_time: 5.000000  Lock_time: 0.000000 Rows_sent: 2  Rows_examined: 3
SELECT id FROM products WHERE price > 10;
# Time: 2024-03-01T10:00:01.000000Z
# Query_time: 0.000000  Lock_time: 0.000000 Rows_sent: 0  Rows_examined: 1
UPDATE products SET price = price + 1 WHERE id = 1;
`

func writeFixtures(t *testing.T) (logPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	logPath = filepath.Join(dir, "slow.log")
	require.NoError(t, os.WriteFile(logPath, []byte(replayLog), 0o644))

	dbPath = filepath.Join(dir, "shop.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE products (id INTEGER PRIMARY KEY, price INTEGER);
		INSERT INTO products (id, price) VALUES (1, 5), (2, 15), (3, 25);`)
	require.NoError(t, err)
	return logPath, dbPath
}

func TestPrepareWritesStatementList(t *testing.T) {
	logPath, _ := writeFixtures(t)
	cfg := config.Defaults(config.ModeSQL)
	cfg.Target = logPath

	cleanup, err := prepare(&cfg)
	require.NoError(t, err)

	assert.Equal(t, config.FormatJSON, cfg.SQL.Format)
	assert.NotEqual(t, logPath, cfg.Target)
	statements, err := slowlog.Load(cfg.Target, cfg.SQL.Format)
	require.NoError(t, err)
	require.Len(t, statements, 2)
	require.NotNil(t, statements[0].Meta)

	cleanup()
	_, err = os.Stat(cfg.Target)
	assert.True(t, os.IsNotExist(err))
}

func TestPrepareRejectsEmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	require.NoError(t, os.WriteFile(path, []byte("# Time: 2024\n"), 0o644))
	cfg := config.Defaults(config.ModeSQL)
	cfg.Target = path

	_, err := prepare(&cfg)
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	logPath, _ := writeFixtures(t)

	var out bytes.Buffer
	require.NoError(t, parse(&out, []string{logPath}))

	statements, err := slowlog.ReadJSON(&out)
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Equal(t, "SELECT id FROM products WHERE price > 10;", statements[0].SQL)

	assert.Error(t, parse(&out, nil))
}

func TestReplayInProcess(t *testing.T) {
	logPath, dbPath := writeFixtures(t)
	var stdout, stderr bytes.Buffer

	cmd := command()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	code := cmd.Main([]string{
		"--client", config.ClientSQLite, "-D", dbPath,
		"-n", "2", "-c", "1", "--in-process", "--json", "--poll-interval", "10ms", "-v", "0",
		logPath,
	})
	require.Equal(t, runner.ExitOK, code, stderr.String())

	var doc struct {
		Report struct {
			Tries        int64 `json:"tries"`
			Failures     int64 `json:"failures"`
			TotalRows    int64 `json:"total_rows"`
			HasBaseline  bool  `json:"has_baseline"`
			RowsExpected int64 `json:"rows_expected"`
			Faster       int64 `json:"faster"`
			Queries      map[string]int64
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &doc), stdout.String())
	r := doc.Report
	assert.Equal(t, int64(4), r.Tries)
	assert.Zero(t, r.Failures)
	assert.Equal(t, int64(4), r.TotalRows)
	assert.True(t, r.HasBaseline)
	assert.Equal(t, int64(4), r.RowsExpected)
	assert.Equal(t, int64(2), r.Faster)
	assert.Equal(t, int64(2), r.Queries["SELECT"])
	assert.Equal(t, int64(2), r.Queries["UPDATE"])
}

func TestReplayUnavailableDatabase(t *testing.T) {
	logPath, _ := writeFixtures(t)
	missing := filepath.Join(t.TempDir(), "no", "such", "shop.db")
	var stdout, stderr bytes.Buffer

	cmd := command()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	code := cmd.Main([]string{
		"--client", config.ClientSQLite, "-D", missing,
		"--in-process", "--json", "--poll-interval", "10ms", "-v", "0",
		logPath,
	})

	assert.Equal(t, runner.ExitConnection, code)
	assert.Contains(t, stderr.String(), "connection error")
}
