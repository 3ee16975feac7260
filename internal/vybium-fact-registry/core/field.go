package core

import (
	"fmt"
	"math/big"
)

// StarkPrimeHex is the Cairo field modulus 2^251 + 17*2^192 + 1.
const StarkPrimeHex = "800000000000011000000000000000000000000000000000000000000000001"

// Field represents a prime field with modular arithmetic operations
type Field struct {
	modulus *big.Int
}

// FieldElement represents an element in the finite field
type FieldElement struct {
	field *Field
	value *big.Int
}

// NewField creates a new finite field with the given modulus
func NewField(modulus *big.Int) (*Field, error) {
	if modulus == nil || modulus.Cmp(big.NewInt(2)) <= 0 {
		return nil, fmt.Errorf("modulus must be greater than 2")
	}
	if modulus.BitLen() > WordSize*8 {
		return nil, fmt.Errorf("modulus does not fit in a %d-byte word", WordSize)
	}
	return &Field{modulus: new(big.Int).Set(modulus)}, nil
}

// StarkPrime returns P = 2^251 + 17*2^192 + 1.
func StarkPrime() *big.Int {
	p, _ := new(big.Int).SetString(StarkPrimeHex, 16)
	return p
}

// StarkField returns the field over StarkPrime.
func StarkField() *Field {
	return &Field{modulus: StarkPrime()}
}

// Modulus returns the field modulus
func (f *Field) Modulus() *big.Int {
	return new(big.Int).Set(f.modulus)
}

// IsCanonical reports whether x is a residue in [0, modulus).
func (f *Field) IsCanonical(x *big.Int) bool {
	return x != nil && x.Sign() >= 0 && x.Cmp(f.modulus) < 0
}

// NewElement creates a new field element from a big.Int
func (f *Field) NewElement(value *big.Int) *FieldElement {
	normalized := new(big.Int).Mod(value, f.modulus)
	return &FieldElement{
		field: f,
		value: normalized,
	}
}

// One returns the multiplicative identity
func (f *Field) One() *FieldElement {
	return f.NewElement(big.NewInt(1))
}

// Equals reports whether both fields share a modulus.
func (f *Field) Equals(other *Field) bool {
	return f.modulus.Cmp(other.modulus) == 0
}

// Big returns the value as a big.Int
func (fe *FieldElement) Big() *big.Int {
	return new(big.Int).Set(fe.value)
}

// Add performs field addition
func (fe *FieldElement) Add(other *FieldElement) *FieldElement {
	if !fe.field.Equals(other.field) {
		panic("cannot add elements from different fields")
	}
	return fe.field.NewElement(new(big.Int).Add(fe.value, other.value))
}

// Sub performs field subtraction
func (fe *FieldElement) Sub(other *FieldElement) *FieldElement {
	if !fe.field.Equals(other.field) {
		panic("cannot subtract elements from different fields")
	}
	return fe.field.NewElement(new(big.Int).Sub(fe.value, other.value))
}

// Mul performs field multiplication
func (fe *FieldElement) Mul(other *FieldElement) *FieldElement {
	if !fe.field.Equals(other.field) {
		panic("cannot multiply elements from different fields")
	}
	return fe.field.NewElement(new(big.Int).Mul(fe.value, other.value))
}

// Equal checks if two field elements are equal
func (fe *FieldElement) Equal(other *FieldElement) bool {
	if !fe.field.Equals(other.field) {
		return false
	}
	return fe.value.Cmp(other.value) == 0
}

// String returns a string representation of the field element
func (fe *FieldElement) String() string {
	return fe.value.String()
}

// MemoryFactor returns value - z + alpha*address, the per-entry factor of a
// page's cumulative product.
func (f *Field) MemoryFactor(address, value, z, alpha *big.Int) *FieldElement {
	v := f.NewElement(value)
	return v.Sub(f.NewElement(z)).Add(f.NewElement(alpha).Mul(f.NewElement(address)))
}
