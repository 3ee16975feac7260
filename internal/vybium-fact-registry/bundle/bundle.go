// Package bundle decodes the verifier input produced by the proof
// preparation tooling (input.json).
package bundle

import (
	"encoding/json"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/statement"
)

// Bundle is one proof submission. Integers are 0x-prefixed hex strings.
type Bundle struct {
	ProofParams     []*hexutil.Big  `json:"proof_params"`
	Proof           []*hexutil.Big  `json:"proof"`
	PublicInput     []*hexutil.Big  `json:"public_input"`
	Z               *hexutil.Big    `json:"z"`
	Alpha           *hexutil.Big    `json:"alpha"`
	MemoryPageFacts MemoryPageFacts `json:"memory_page_facts"`

	// Present only for bootloader runs.
	TaskMetadata          []*hexutil.Big `json:"task_metadata,omitempty"`
	BootloaderProgramHash *hexutil.Big   `json:"bootloader_program_hash,omitempty"`
	CairoVerifierID       *uint64        `json:"cairo_verifier_id,omitempty"`
}

// MemoryPageFacts lists the pages to register, in registration order.
type MemoryPageFacts struct {
	RegularPage     *RegularPage     `json:"regular_page"`
	ContinuousPages []ContinuousPage `json:"continuous_pages"`
}

// RegularPage holds interleaved address/value pairs
type RegularPage struct {
	MemoryPairs []*hexutil.Big `json:"memory_pairs"`
}

// ContinuousPage holds values stored from StartAddr on
type ContinuousPage struct {
	StartAddr *hexutil.Big   `json:"start_addr"`
	Values    []*hexutil.Big `json:"values"`
}

// Decode reads and checks one bundle
func Decode(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, core.Wrap(core.ErrValidation, err, "decode bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Load reads a bundle file
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.Wrap(core.ErrValidation, err, "open bundle %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Validate checks that required fields are present and no list has holes.
// Range checks against the field happen at registration.
func (b *Bundle) Validate() error {
	if b.Z == nil || b.Alpha == nil {
		return core.Validationf("bundle needs z and alpha")
	}
	lists := map[string][]*hexutil.Big{
		"proof_params":  b.ProofParams,
		"proof":         b.Proof,
		"public_input":  b.PublicInput,
		"task_metadata": b.TaskMetadata,
	}
	if b.MemoryPageFacts.RegularPage != nil {
		lists["regular_page.memory_pairs"] = b.MemoryPageFacts.RegularPage.MemoryPairs
	}
	for name, xs := range lists {
		for i, x := range xs {
			if x == nil {
				return core.Validationf("%s[%d] is null", name, i)
			}
		}
	}
	for i, p := range b.MemoryPageFacts.ContinuousPages {
		if p.StartAddr == nil {
			return core.Validationf("continuous_pages[%d] has no start_addr", i)
		}
		for j, v := range p.Values {
			if v == nil {
				return core.Validationf("continuous_pages[%d].values[%d] is null", i, j)
			}
		}
	}
	return nil
}

// Ints converts hex integers to big integers
func Ints(xs []*hexutil.Big) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = x.ToInt()
	}
	return out
}

// ZAlpha returns the memory interaction elements
func (b *Bundle) ZAlpha() (z, alpha *big.Int) {
	return b.Z.ToInt(), b.Alpha.ToInt()
}

// CairoAuxInput is the verifier's auxiliary input: public_input, z, alpha.
func (b *Bundle) CairoAuxInput() []*big.Int {
	out := Ints(b.PublicInput)
	return append(out, b.Z.ToInt(), b.Alpha.ToInt())
}

// TraceCommitment is the first proof word, or nil for an empty proof.
func (b *Bundle) TraceCommitment() *big.Int {
	if len(b.Proof) == 0 {
		return nil
	}
	return b.Proof[0].ToInt()
}

// VerifierID returns the declared sub-verifier, or the Cairo default.
func (b *Bundle) VerifierID() uint64 {
	if b.CairoVerifierID == nil {
		return statement.DefaultVerifierID
	}
	return *b.CairoVerifierID
}

// Tasks decodes task metadata. A bundle without metadata has no tasks.
func (b *Bundle) Tasks() ([]statement.TaskDescriptor, error) {
	if len(b.TaskMetadata) == 0 {
		return nil, nil
	}
	return statement.DecodeTaskMetadata(Ints(b.TaskMetadata))
}
