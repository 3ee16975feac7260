package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const input = `{
  "proof_params": [],
  "proof": ["0xc0ffee"],
  "public_input": ["0xa"],
  "z": "0x3",
  "alpha": "0x2",
  "task_metadata": ["0x1", "0x6f", "0x1", "0x1"],
  "memory_page_facts": {
    "regular_page": {"memory_pairs": ["0x1", "0x5", "0x2", "0x7"]},
    "continuous_pages": [{"start_addr": "0x14", "values": ["0x4"]}]
  }
}`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSubmitAndIsValid(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, "registry.yaml", `
bootloader_program_hash: "0xb007"
storage:
  driver: sqlite
  dsn: `+filepath.Join(dir, "facts.db")+`
log:
  level: error
`)
	bundlePath := writeFile(t, "input.json", input)

	out, err := execute(t, "submit", "--config", cfg, "--input", bundlePath)
	require.NoError(t, err)

	var res submitOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Pages, 2)
	require.Equal(t, "regular", res.Pages[0].Type)
	require.Equal(t, "0x20", res.Pages[0].Product)
	require.NotNil(t, res.AggregateFact)
	require.Len(t, res.TaskFacts, 1)
	require.Equal(t, []string{"0xa", "0x3", "0x2"}, res.CairoAuxInput)

	out, err = execute(t, "is-valid", "--config", cfg, res.AggregateFact.Hex())
	require.NoError(t, err)
	require.Equal(t, "true\n", out)

	out, err = execute(t, "is-valid", "--config", cfg, "0x"+string(bytes.Repeat([]byte("ab"), 32)))
	require.NoError(t, err)
	require.Equal(t, "false\n", out)
}

func TestIsValidRejectsMalformedFact(t *testing.T) {
	_, err := execute(t, "is-valid", "--config", "", "0x1234")
	require.Error(t, err)
}

func TestChallenges(t *testing.T) {
	bundlePath := writeFile(t, "input.json", input)
	fromBundle, err := execute(t, "challenges", "--config", "", "--input", bundlePath)
	require.NoError(t, err)

	var a map[string]string
	require.NoError(t, json.Unmarshal([]byte(fromBundle), &a))
	require.NotEmpty(t, a["z"])
	require.NotEmpty(t, a["alpha"])

	fromFlags, err := execute(t, "challenges", "--input", "",
		"--public-input-hash", a["public_input_hash"],
		"--trace-commitment", "0xc0ffee")
	require.NoError(t, err)
	require.JSONEq(t, fromBundle, fromFlags)

	_, err = execute(t, "challenges", "--input", "", "--public-input-hash", "")
	require.Error(t, err)
}
