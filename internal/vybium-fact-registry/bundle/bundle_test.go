package bundle

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/statement"
)

const sample = `{
  "proof_params": ["0x1", "0x2"],
  "proof": ["0xc0ffee", "0x5"],
  "public_input": ["0xa", "0xb"],
  "z": "0x3",
  "alpha": "0x2",
  "task_metadata": ["0x1", "0x6f", "0x2", "0x2", "0x3"],
  "bootloader_program_hash": "0xb007",
  "memory_page_facts": {
    "regular_page": {"memory_pairs": ["0x1", "0x5", "0x2", "0x7"]},
    "continuous_pages": [
      {"start_addr": "0xa", "values": ["0x1", "0x2", "0x3"]}
    ]
  }
}`

func ints(xs ...int64) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = big.NewInt(x)
	}
	return out
}

func TestDecode(t *testing.T) {
	b, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	z, alpha := b.ZAlpha()
	require.Equal(t, int64(3), z.Int64())
	require.Equal(t, int64(2), alpha.Int64())
	require.Equal(t, ints(1, 5, 2, 7), Ints(b.MemoryPageFacts.RegularPage.MemoryPairs))
	require.Len(t, b.MemoryPageFacts.ContinuousPages, 1)
	require.Equal(t, int64(10), b.MemoryPageFacts.ContinuousPages[0].StartAddr.ToInt().Int64())

	require.Equal(t, ints(10, 11, 3, 2), b.CairoAuxInput())
	require.Equal(t, int64(0xc0ffee), b.TraceCommitment().Int64())
	require.Equal(t, statement.DefaultVerifierID, b.VerifierID())
	require.Equal(t, int64(0xb007), b.BootloaderProgramHash.ToInt().Int64())

	tasks, err := b.Tasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, int64(0x6f), tasks[0].ProgramHash.Int64())
	require.Equal(t, []uint64{2, 3}, tasks[0].PageSizes)
}

func TestDecodeWithoutTasks(t *testing.T) {
	b, err := Decode(strings.NewReader(`{"z": "0x1", "alpha": "0x2", "cairo_verifier_id": 7,
		"memory_page_facts": {"regular_page": null, "continuous_pages": []}}`))
	require.NoError(t, err)
	tasks, err := b.Tasks()
	require.NoError(t, err)
	require.Nil(t, tasks)
	require.Nil(t, b.TraceCommitment())
	require.Equal(t, uint64(7), b.VerifierID())
}

func TestDecodeRejects(t *testing.T) {
	docs := map[string]string{
		"not json":        `{`,
		"missing z":       `{"alpha": "0x2"}`,
		"no hex prefix":   `{"z": "3", "alpha": "0x2"}`,
		"null pair":       `{"z": "0x3", "alpha": "0x2", "memory_page_facts": {"regular_page": {"memory_pairs": ["0x1", null]}}}`,
		"no start_addr":   `{"z": "0x3", "alpha": "0x2", "memory_page_facts": {"continuous_pages": [{"values": ["0x1"]}]}}`,
		"null proof word": `{"z": "0x3", "alpha": "0x2", "proof": [null]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			require.ErrorIs(t, err, core.ValidationError)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	b, err := Load(path)
	require.NoError(t, err)
	require.Len(t, b.Proof, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, core.ValidationError)
}
