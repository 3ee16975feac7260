package memorypage

import (
	"math/big"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// MemoryPageFact is a committed memory page.
type MemoryPageFact struct {
	Index        uint64
	Type         core.PageType
	PageHash     core.Fact
	Product      *big.Int
	Size         uint64
	StartAddress *big.Int
	Fact         core.Fact
}

// PageInfo is the part of a page the aggregator consumes.
type PageInfo struct {
	Product *big.Int
	Size    uint64
}

// Info returns the page's product and size
func (p *MemoryPageFact) Info() PageInfo {
	return PageInfo{Product: new(big.Int).Set(p.Product), Size: p.Size}
}

func (p *MemoryPageFact) clone() *MemoryPageFact {
	c := *p
	c.Product = new(big.Int).Set(p.Product)
	if p.StartAddress != nil {
		c.StartAddress = new(big.Int).Set(p.StartAddress)
	}
	return &c
}

// FactDigest returns keccak256(pageType, pageHash, product, size) over
// 32-byte words.
func FactDigest(t core.PageType, pageHash core.Fact, product *big.Int, size uint64) core.Fact {
	return core.NewWordsHasher().
		Uint64(uint64(t)).
		Fact(pageHash).
		Big(product).
		Uint64(size).
		Sum()
}

// RegularPageHash hashes the interleaved pairs exactly as given.
func RegularPageHash(pairs []*big.Int) core.Fact {
	return core.HashWords(pairs)
}

// ContinuousPageHash hashes the values only; addresses are implicit.
func ContinuousPageHash(values []*big.Int) core.Fact {
	return core.HashWords(values)
}

// RegularProduct folds (value - z + alpha*address) over interleaved pairs.
// Inputs are assumed canonical.
func RegularProduct(field *core.Field, pairs []*big.Int, z, alpha *big.Int) *big.Int {
	prod := field.One()
	for i := 0; i+1 < len(pairs); i += 2 {
		prod = prod.Mul(field.MemoryFactor(pairs[i], pairs[i+1], z, alpha))
	}
	return prod.Big()
}

// ContinuousProduct folds (value - z + alpha*address) with addresses
// startAddr, startAddr+1, ...
func ContinuousProduct(field *core.Field, startAddr *big.Int, values []*big.Int, z, alpha *big.Int) *big.Int {
	prod := field.One()
	addr := new(big.Int).Set(startAddr)
	one := big.NewInt(1)
	for _, v := range values {
		prod = prod.Mul(field.MemoryFactor(addr, v, z, alpha))
		addr.Add(addr, one)
	}
	return prod.Big()
}
