package core

import (
	"hash"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// WordSize is the width of one encoded integer, matching a uint256 slot.
const WordSize = 32

// Keccak256 hashes the concatenation of data with legacy Keccak-256, the
// variant exposed by the EVM as keccak256.
func Keccak256(data ...[]byte) Fact {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out Fact
	h.Sum(out[:0])
	return out
}

// Word encodes x as a 32-byte big-endian word. x must be non-negative and
// fit in 256 bits.
func Word(x *big.Int) [WordSize]byte {
	var w [WordSize]byte
	x.FillBytes(w[:])
	return w
}

// WordsHasher feeds a sequence of 32-byte words into Keccak-256. It is the
// streaming form of keccak256(abi.encodePacked(uint256...)).
type WordsHasher struct {
	h hash.Hash
}

// NewWordsHasher creates an empty hasher
func NewWordsHasher() *WordsHasher {
	return &WordsHasher{h: sha3.NewLegacyKeccak256()}
}

// Big appends one big-integer word
func (w *WordsHasher) Big(x *big.Int) *WordsHasher {
	word := Word(x)
	w.h.Write(word[:])
	return w
}

// Uint64 appends one small-integer word
func (w *WordsHasher) Uint64(x uint64) *WordsHasher {
	return w.Big(new(big.Int).SetUint64(x))
}

// Fact appends a digest verbatim; it already is a word.
func (w *WordsHasher) Fact(f Fact) *WordsHasher {
	w.h.Write(f[:])
	return w
}

// Sum returns the digest of everything written so far
func (w *WordsHasher) Sum() Fact {
	var out Fact
	w.h.Sum(out[:0])
	return out
}

// HashWords returns keccak256 over the word encoding of xs.
func HashWords(xs []*big.Int) Fact {
	w := NewWordsHasher()
	for _, x := range xs {
		w.Big(x)
	}
	return w.Sum()
}
