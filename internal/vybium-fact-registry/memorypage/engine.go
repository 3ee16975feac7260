// Package memorypage turns raw memory slices into page hashes, cumulative
// products and registered facts.
package memorypage

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/events"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/facts"
)

// Engine commits memory pages. Pages get sequential indices in commit order;
// a page whose fact is already known keeps its original slot.
type Engine struct {
	mu       sync.RWMutex
	field    *core.Field
	registry facts.Registry
	logger   *zap.Logger
	emitter  events.Emitter

	pages  []*MemoryPageFact
	byFact map[core.Fact]*MemoryPageFact
	byHash map[core.Fact][]*MemoryPageFact
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEmitter sets where PageRegistered records go
func WithEmitter(emitter events.Emitter) Option {
	return func(e *Engine) {
		if emitter != nil {
			e.emitter = emitter
		}
	}
}

// NewEngine creates an engine over field registering facts into registry.
// A nil field selects the Stark field.
func NewEngine(field *core.Field, registry facts.Registry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, core.Configf("memory page engine needs a fact registry")
	}
	if field == nil {
		field = core.StarkField()
	}
	e := &Engine{
		field:    field,
		registry: registry,
		logger:   zap.NewNop(),
		emitter:  events.Nop{},
		byFact:   make(map[core.Fact]*MemoryPageFact),
		byHash:   make(map[core.Fact][]*MemoryPageFact),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Field returns the engine's field
func (e *Engine) Field() *core.Field {
	return e.field
}

// RegisterRegularPage commits interleaved (address, value) pairs.
func (e *Engine) RegisterRegularPage(ctx context.Context, pairs []*big.Int, z, alpha, prime *big.Int) (*MemoryPageFact, error) {
	if err := e.checkChallenges(z, alpha, prime); err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, core.Validationf("memory pairs are empty")
	}
	if len(pairs)%2 != 0 {
		return nil, core.Validationf("memory pairs length %d is odd", len(pairs))
	}
	for i, x := range pairs {
		if !e.field.IsCanonical(x) {
			return nil, core.Validationf("memory pair element %d is not a canonical field element", i)
		}
	}

	pageHash := RegularPageHash(pairs)
	product := RegularProduct(e.field, pairs, z, alpha)
	size := uint64(len(pairs) / 2)

	return e.commit(ctx, &MemoryPageFact{
		Type:     core.RegularPage,
		PageHash: pageHash,
		Product:  product,
		Size:     size,
		Fact:     FactDigest(core.RegularPage, pageHash, product, size),
	})
}

// RegisterContinuousPage commits values stored at startAddr, startAddr+1, ...
func (e *Engine) RegisterContinuousPage(ctx context.Context, startAddr *big.Int, values []*big.Int, z, alpha, prime *big.Int) (*MemoryPageFact, error) {
	if err := e.checkChallenges(z, alpha, prime); err != nil {
		return nil, err
	}
	if !e.field.IsCanonical(startAddr) {
		return nil, core.Validationf("start address is not a canonical field element")
	}
	if len(values) == 0 {
		return nil, core.Validationf("page values are empty")
	}
	last := new(big.Int).Add(startAddr, big.NewInt(int64(len(values)-1)))
	if !e.field.IsCanonical(last) {
		return nil, core.Validationf("page end address %s is outside the field", last)
	}
	for i, v := range values {
		if !e.field.IsCanonical(v) {
			return nil, core.Validationf("page value %d is not a canonical field element", i)
		}
	}

	pageHash := ContinuousPageHash(values)
	product := ContinuousProduct(e.field, startAddr, values, z, alpha)
	size := uint64(len(values))

	return e.commit(ctx, &MemoryPageFact{
		Type:         core.ContinuousPage,
		PageHash:     pageHash,
		Product:      product,
		Size:         size,
		StartAddress: new(big.Int).Set(startAddr),
		Fact:         FactDigest(core.ContinuousPage, pageHash, product, size),
	})
}

func (e *Engine) checkChallenges(z, alpha, prime *big.Int) error {
	if prime == nil || prime.Cmp(e.field.Modulus()) != 0 {
		return core.Validationf("prime does not match the field modulus")
	}
	if !e.field.IsCanonical(z) {
		return core.Validationf("z is not a canonical field element")
	}
	if !e.field.IsCanonical(alpha) {
		return core.Validationf("alpha is not a canonical field element")
	}
	return nil
}

// commit registers page.Fact and records the page. Nothing is recorded when
// the registry refuses the fact.
func (e *Engine) commit(ctx context.Context, page *MemoryPageFact) (*MemoryPageFact, error) {
	e.mu.Lock()
	if existing, ok := e.byFact[page.Fact]; ok {
		e.mu.Unlock()
		e.logger.Debug("memory page already registered",
			zap.Uint64("index", existing.Index),
			zap.Stringer("fact", existing.Fact))
		return existing.clone(), nil
	}
	if err := e.registry.RegisterFact(ctx, page.Fact); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	page.Index = uint64(len(e.pages))
	e.pages = append(e.pages, page)
	e.byFact[page.Fact] = page
	e.byHash[page.PageHash] = append(e.byHash[page.PageHash], page)
	committed, recorded := page.clone(), page.clone()
	e.mu.Unlock()

	e.logger.Debug("memory page committed",
		zap.Uint64("index", committed.Index),
		zap.Stringer("type", committed.Type),
		zap.Stringer("page_hash", committed.PageHash))

	ev := events.PageRegistered{
		ID:           events.NewID(),
		Index:        committed.Index,
		Type:         committed.Type,
		PageHash:     committed.PageHash,
		Fact:         committed.Fact,
		Product:      (*hexutil.Big)(recorded.Product),
		Size:         committed.Size,
		StartAddress: (*hexutil.Big)(recorded.StartAddress),
	}
	if err := e.emitter.EmitPage(ctx, ev); err != nil {
		e.logger.Warn("page event not delivered", zap.Uint64("index", committed.Index), zap.Error(err))
	}
	return committed, nil
}

// PageInfo returns product and size of the first page committed under
// pageHash.
func (e *Engine) PageInfo(pageHash core.Fact) (PageInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	slots := e.byHash[pageHash]
	if len(slots) == 0 {
		return PageInfo{}, core.NotFoundf("no memory page with hash %s", pageHash.Hex())
	}
	return slots[0].Info(), nil
}

// Lookup returns the page committed under pageHash with the given product.
// Continuous pages with equal values but different start addresses share a
// hash and are told apart by their products.
func (e *Engine) Lookup(pageHash core.Fact, product *big.Int) (*MemoryPageFact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, p := range e.byHash[pageHash] {
		if product != nil && p.Product.Cmp(product) == 0 {
			return p.clone(), nil
		}
	}
	return nil, core.NotFoundf("no memory page with hash %s and product %s", pageHash.Hex(), product)
}

// Page returns the page at index
func (e *Engine) Page(index uint64) (*MemoryPageFact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if index >= uint64(len(e.pages)) {
		return nil, core.NotFoundf("no memory page at index %d", index)
	}
	return e.pages[index].clone(), nil
}

// PageCount returns the number of committed pages
func (e *Engine) PageCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pages)
}
