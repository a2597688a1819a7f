package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/xela07ax/trust-center/internal/domain"
)

func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	unified := `{
		"metadata": {"impact_level": "Low", "validation_date": "2024-06-01"},
		"results": [
			{"ksi_id": "KSI-CNA-01", "assertion": true, "assertion_reason": "All good"},
			{"ksi_id": "KSI-IAM-02", "assertion": "false", "assertion_reason": "MFA not enforced"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unified_ksi_validations.json"), []byte(unified), 0o600))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cli.Command{
		Name:   "trustcenter-snapshot",
		Writer: &buf,
		// не даем cli.Exit завершить процесс теста
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config"},
			&cli.StringFlag{Name: "dir"},
			&cli.StringFlag{Name: "base-url"},
			&cli.StringFlag{Name: "format", Value: formatJSON},
			&cli.BoolFlag{Name: "pretty"},
			&cli.FloatFlag{Name: "fail-under"},
			&cli.StringFlag{Name: "log-level", Value: "error"},
		},
		Action: snapshotAction,
	}
	err := cmd.Run(context.Background(), append([]string{"trustcenter-snapshot"}, args...))
	return buf.String(), err
}

func TestSnapshotCommandJSON(t *testing.T) {
	dir := writeArtifacts(t)

	out, err := run(t, "--dir", dir)
	require.NoError(t, err)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Len(t, snap.Records, 2)
	assert.Equal(t, 50.0, snap.Metrics.Score)
	assert.ElementsMatch(t, []string{
		"cli_command_register.json", "ksi_history.jsonl", "mas_boundary.json", "metrics_history.jsonl",
	}, snap.DegradedSources)
}

func TestSnapshotCommandSummary(t *testing.T) {
	dir := writeArtifacts(t)

	out, err := run(t, "--dir", dir, "--format", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Compliance score: 50.0%")
	assert.Contains(t, out, "Impact level: Low")
	assert.Contains(t, out, "KSI-IAM-02")
	assert.Contains(t, out, "MFA not enforced")
	assert.NotContains(t, out, "KSI-CNA-01")
}

func TestSnapshotCommandFailUnder(t *testing.T) {
	dir := writeArtifacts(t)

	_, err := run(t, "--dir", dir, "--format", "summary", "--fail-under", "80")
	require.Error(t, err)
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())

	_, err = run(t, "--dir", dir, "--format", "summary", "--fail-under", "50")
	assert.NoError(t, err)
}

func TestSnapshotCommandErrors(t *testing.T) {
	_, err := run(t, "--dir", t.TempDir())
	assert.Error(t, err, "primary artifact is missing")

	_, err = run(t, "--dir", writeArtifacts(t), "--format", "xml")
	assert.ErrorIs(t, err, errUnknownFormat)
}
