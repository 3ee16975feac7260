package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// MontgomeryRInvHex is R^-1 mod P for R = 2^256.
const MontgomeryRInvHex = "40000000000001100000000000012100000000000000000000000000000000"

var (
	two256    = new(big.Int).Lsh(big.NewInt(1), 256)
	rInv, _   = new(big.Int).SetString(MontgomeryRInvHex, 16)
	drawBound = new(big.Int).Mul(core.StarkPrime(), big.NewInt(31))
)

// Channel represents the verifier's Fiat-Shamir PRNG: a Keccak digest and a
// counter, seeded with the public input hash.
type Channel struct {
	digest  core.Fact
	counter uint64
	proof   []string
	field   *core.Field
}

// NewChannel creates a channel seeded with publicInputHash
func NewChannel(publicInputHash core.Fact) *Channel {
	return &Channel{
		digest: publicInputHash,
		proof:  make([]string, 0, 8),
		field:  core.StarkField(),
	}
}

// MixHash absorbs a prover commitment:
// digest = keccak256(digest+1, word), counter = 0.
func (c *Channel) MixHash(word core.Fact) {
	c.proof = append(c.proof, fmt.Sprintf("mix:%s", word.Hex()))
	bumped := new(big.Int).Add(core.FactToBig(c.digest), big.NewInt(1))
	bumped.Mod(bumped, two256)
	c.digest = core.NewWordsHasher().Big(bumped).Fact(word).Sum()
	c.counter = 0
}

// DrawFieldElement samples below 31*P by rejection and converts the sample
// out of Montgomery form.
func (c *Channel) DrawFieldElement() *big.Int {
	sample := core.FactToBig(c.digest)
	for sample.Cmp(drawBound) >= 0 {
		c.advance()
		sample = core.FactToBig(c.digest)
	}
	x := new(big.Int).Mul(sample, rInv)
	x.Mod(x, c.field.Modulus())
	c.advance()

	c.proof = append(c.proof, fmt.Sprintf("draw:%s", x.String()))
	return x
}

// advance sets digest = keccak256(digest, ++counter).
func (c *Channel) advance() {
	c.counter++
	c.digest = core.NewWordsHasher().Fact(c.digest).Uint64(c.counter).Sum()
}

// Digest returns the current PRNG digest
func (c *Channel) Digest() core.Fact {
	return c.digest
}

// Counter returns the current PRNG counter
func (c *Channel) Counter() uint64 {
	return c.counter
}

// Proof returns the transcript of mixes and draws
func (c *Channel) Proof() []string {
	return append([]string(nil), c.proof...)
}

// String returns a string representation of the channel transcript
func (c *Channel) String() string {
	return strings.Join(c.proof, " ")
}

// PublicInputHash hashes the public input words, excluding the page
// products, the way the verifier seeds its channel.
func PublicInputHash(words []*big.Int) core.Fact {
	return core.HashWords(words)
}

// DeriveInteractionElements replays the verifier channel up to the memory
// interaction elements: the trace commitment is mixed in, then z and alpha
// are drawn. A nil commitment skips the mix.
func DeriveInteractionElements(publicInputHash core.Fact, traceCommitment *big.Int) (z, alpha *big.Int) {
	ch := NewChannel(publicInputHash)
	if traceCommitment != nil {
		ch.MixHash(core.FactFromBig(traceCommitment))
	}
	z = ch.DrawFieldElement()
	alpha = ch.DrawFieldElement()
	return z, alpha
}
