package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func execute(t *testing.T, cmd subcommands.Command, args ...string) (subcommands.ExitStatus, []byte) {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Execute(context.Background(), fs), buf.Bytes()
}

func TestReadRows_CSVAndJSON(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "journal.csv", "날짜,소유자,계좌,종목,거래구분,거래금액,수량\n2024-01-02,Kim,ISA,원화,입금,0,100\n")
	rows, err := readRows(csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "100", rows[0].Quantity.String())
	assert.Equal(t, 2, rows[0].SourceRow)

	jsonPath := writeFile(t, dir, "rows.json", `[{"date":"2024-01-02","owner":"Kim","account":"ISA","asset":"원화","type":"입금","amount":0,"quantity":5}]`)
	rows, err = readRows(jsonPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "5", rows[0].Quantity.String())

	_, err = readRows("")
	assert.Error(t, err)
}

func TestSyncThenHoldings(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", filepath.Join(dir, "ledger.db"))
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	// Nothing listens here, so FX lookups fail fast and fall back.
	t.Setenv("QUOTE_BASE_URL", "http://127.0.0.1:1")

	rows := writeFile(t, dir, "rows.json", `[
		{"date":"2024-01-02","owner":"Kim","account":"ISA","asset":"원화","type":"입금","amount":0,"quantity":1000000,"currency":"KRW"},
		{"date":"2024-01-05","owner":"Kim","account":"ISA","asset":"원화","type":"출금","amount":0,"quantity":300000,"currency":"KRW"}
	]`)

	status, out := execute(t, &syncCmd{}, "-f", rows)
	require.Equal(t, subcommands.ExitSuccess, status)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &res))
	assert.EqualValues(t, 2, res["inserted"])

	status, out = execute(t, &holdingsCmd{}, "-owner", "Kim")
	require.Equal(t, subcommands.ExitSuccess, status)
	var holdings struct {
		Positions []struct {
			Asset    string `json:"asset"`
			Quantity string `json:"quantity"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(out, &holdings))
	require.Len(t, holdings.Positions, 1)
	assert.Equal(t, "700000", holdings.Positions[0].Quantity)

	status, _ = execute(t, &snapshotCmd{}, "-d", "2024-01-05")
	require.Equal(t, subcommands.ExitSuccess, status)
	status, out = execute(t, &seriesCmd{}, "-p", "General")
	require.Equal(t, subcommands.ExitSuccess, status)
	var points []map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &points))
	require.Len(t, points, 1)
	assert.Equal(t, "100", points[0]["index_val"])
}

func TestMaster_RequiresAFile(t *testing.T) {
	fs := flag.NewFlagSet("master", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	cmd := &masterCmd{}
	cmd.SetFlags(fs)
	assert.Equal(t, subcommands.ExitUsageError, cmd.Execute(context.Background(), fs))
}
