package core

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Fact is a 32-byte content-addressed digest attesting a verified claim.
type Fact = common.Hash

// PageType distinguishes the two memory page encodings.
type PageType uint8

const (
	// RegularPage holds interleaved (address, value) pairs
	RegularPage PageType = 0
	// ContinuousPage holds a value run starting at an explicit address
	ContinuousPage PageType = 1
)

// String returns the page type name
func (t PageType) String() string {
	switch t {
	case RegularPage:
		return "regular"
	case ContinuousPage:
		return "continuous"
	default:
		return fmt.Sprintf("PageType(%d)", uint8(t))
	}
}

// FactToBig interprets a fact as a big-endian unsigned integer.
func FactToBig(f Fact) *big.Int {
	return new(big.Int).SetBytes(f[:])
}

// FactFromBig encodes x as a fact word. x must fit in 256 bits.
func FactFromBig(x *big.Int) Fact {
	return Fact(Word(x))
}

// ParseFact decodes a 0x-prefixed 32-byte hex string.
func ParseFact(s string) (Fact, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Fact{}, Validationf("fact %q: %v", s, err)
	}
	if len(b) != WordSize {
		return Fact{}, Validationf("fact %q: expected %d bytes, got %d", s, WordSize, len(b))
	}
	return common.BytesToHash(b), nil
}
