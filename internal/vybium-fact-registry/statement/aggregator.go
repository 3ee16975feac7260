// Package statement folds committed memory pages into per-task facts and
// one aggregate fact for a multi-task batch.
package statement

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/events"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/facts"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/memorypage"
)

// DefaultVerifierID is the Cairo sub-verifier accepted when none is configured.
const DefaultVerifierID uint64 = 6

// PageSource resolves a page by hash and product.
type PageSource interface {
	Lookup(pageHash core.Fact, product *big.Int) (*memorypage.MemoryPageFact, error)
}

// Config fixes the identity the aggregator accepts.
type Config struct {
	BootloaderProgramHash *big.Int
	SupportedVerifierIDs  []uint64
}

// PageRef names a page of the public input.
type PageRef struct {
	Hash    core.Fact
	Product *big.Int
}

// Statement is one aggregation request. Pages are listed in public input
// order and consumed by tasks positionally.
type Statement struct {
	VerifierID            uint64
	BootloaderProgramHash *big.Int
	Pages                 []PageRef
	Tasks                 []TaskDescriptor
}

// Result describes a registered statement.
type Result struct {
	AggregateFact core.Fact
	TaskFacts     []core.Fact
	VerifierID    uint64
	// Fresh is false when the aggregate fact was already valid.
	Fresh bool
}

// Aggregator registers aggregate facts. Calls are serialized.
type Aggregator struct {
	mu         sync.Mutex
	pages      PageSource
	registry   facts.Registry
	bootloader *big.Int
	verifiers  []uint64
	field      *core.Field
	logger     *zap.Logger
	emitter    events.Emitter
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithLogger sets the aggregator logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithEmitter sets where StatementRegistered records go
func WithEmitter(emitter events.Emitter) Option {
	return func(a *Aggregator) {
		if emitter != nil {
			a.emitter = emitter
		}
	}
}

// WithField overrides the field program hashes must be canonical in
func WithField(field *core.Field) Option {
	return func(a *Aggregator) {
		if field != nil {
			a.field = field
		}
	}
}

// NewAggregator creates an aggregator
func NewAggregator(pages PageSource, registry facts.Registry, cfg Config, opts ...Option) (*Aggregator, error) {
	if pages == nil {
		return nil, core.Configf("aggregator needs a page source")
	}
	if registry == nil {
		return nil, core.Configf("aggregator needs a fact registry")
	}
	if cfg.BootloaderProgramHash == nil || cfg.BootloaderProgramHash.Sign() < 0 {
		return nil, core.Configf("bootloader program hash is not set")
	}
	verifiers := slices.Clone(cfg.SupportedVerifierIDs)
	if len(verifiers) == 0 {
		verifiers = []uint64{DefaultVerifierID}
	}
	a := &Aggregator{
		pages:      pages,
		registry:   registry,
		bootloader: new(big.Int).Set(cfg.BootloaderProgramHash),
		verifiers:  verifiers,
		field:      core.StarkField(),
		logger:     zap.NewNop(),
		emitter:    events.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	if !a.field.IsCanonical(a.bootloader) {
		return nil, core.Configf("bootloader program hash is not a canonical field element")
	}
	return a, nil
}

// Register validates st against the committed pages and registers its
// aggregate fact.
func (a *Aggregator) Register(ctx context.Context, st Statement) (*Result, error) {
	a.mu.Lock()
	res, err := a.register(ctx, st)
	a.mu.Unlock()
	if err != nil {
		a.logger.Debug("statement rejected", zap.Error(err))
		return nil, err
	}

	if res.Fresh {
		ev := events.StatementRegistered{
			ID:            events.NewID(),
			AggregateFact: res.AggregateFact,
			TaskCount:     len(res.TaskFacts),
			TaskFacts:     slices.Clone(res.TaskFacts),
			VerifierID:    res.VerifierID,
		}
		if err := a.emitter.EmitStatement(ctx, ev); err != nil {
			a.logger.Warn("statement event not delivered", zap.Stringer("aggregate_fact", res.AggregateFact), zap.Error(err))
		}
	}
	return res, nil
}

func (a *Aggregator) register(ctx context.Context, st Statement) (*Result, error) {
	if st.BootloaderProgramHash == nil || st.BootloaderProgramHash.Cmp(a.bootloader) != 0 {
		return nil, &core.Error{
			Code:    core.ErrIdentityMismatch,
			Message: fmt.Sprintf("bootloader program hash %v, expected %s", st.BootloaderProgramHash, a.bootloader),
		}
	}
	if !slices.Contains(a.verifiers, st.VerifierID) {
		return nil, &core.Error{
			Code:    core.ErrUnsupportedVerifier,
			Message: fmt.Sprintf("verifier id %d is not supported", st.VerifierID),
		}
	}
	if len(st.Tasks) == 0 {
		return nil, core.Layoutf("statement has no tasks")
	}

	var declaredPages int
	var declaredSize uint64
	for i, t := range st.Tasks {
		if !a.field.IsCanonical(t.ProgramHash) {
			return nil, core.Validationf("task %d program hash is not a canonical field element", i)
		}
		if len(t.PageSizes) == 0 {
			return nil, core.Layoutf("task %d has no pages", i)
		}
		for j, s := range t.PageSizes {
			if s == 0 {
				return nil, core.Layoutf("task %d page %d has zero size", i, j)
			}
			declaredSize += s
		}
		declaredPages += len(t.PageSizes)
	}
	if declaredPages != len(st.Pages) {
		return nil, core.Layoutf("tasks declare %d pages, statement references %d", declaredPages, len(st.Pages))
	}

	pages := make([]*memorypage.MemoryPageFact, len(st.Pages))
	seen := make(map[core.Fact]int, len(st.Pages))
	var registeredSize uint64
	for i, ref := range st.Pages {
		if ref.Product == nil {
			return nil, core.Validationf("page %d has no product", i)
		}
		page, err := a.pages.Lookup(ref.Hash, ref.Product)
		if err != nil {
			return nil, err
		}
		if first, ok := seen[page.Fact]; ok {
			return nil, core.Layoutf("page %d is referenced twice (first as page %d)", i, first)
		}
		seen[page.Fact] = i
		pages[i] = page
		registeredSize += page.Size
	}
	if declaredSize != registeredSize {
		return nil, core.Layoutf("tasks declare %d memory entries, referenced pages hold %d", declaredSize, registeredSize)
	}

	taskFacts := make([]core.Fact, len(st.Tasks))
	next := 0
	for i, t := range st.Tasks {
		infos := make([]memorypage.PageInfo, len(t.PageSizes))
		for j, s := range t.PageSizes {
			page := pages[next]
			if page.Size != s {
				return nil, core.Layoutf("task %d page %d declares size %d, registered page holds %d", i, j, s, page.Size)
			}
			infos[j] = page.Info()
			next++
		}
		taskFacts[i] = TaskFact(t.ProgramHash, infos)
	}

	aggregate := AggregateFact(a.bootloader, taskFacts)
	fresh := !a.registry.IsValid(aggregate)
	if err := a.registry.RegisterFact(ctx, aggregate); err != nil {
		return nil, err
	}
	if fresh {
		a.logger.Debug("aggregate fact registered",
			zap.Stringer("aggregate_fact", aggregate),
			zap.Int("task_count", len(taskFacts)))
	}
	return &Result{
		AggregateFact: aggregate,
		TaskFacts:     taskFacts,
		VerifierID:    st.VerifierID,
		Fresh:         fresh,
	}, nil
}

// TaskFact returns keccak256(programHash, nPages, (product, size)...).
func TaskFact(programHash *big.Int, pages []memorypage.PageInfo) core.Fact {
	h := core.NewWordsHasher().Big(programHash).Uint64(uint64(len(pages)))
	for _, p := range pages {
		h.Big(p.Product).Uint64(p.Size)
	}
	return h.Sum()
}

// AggregateFact folds task facts into the bootloader hash:
// acc = keccak256(acc, taskFact) starting from the bootloader word.
func AggregateFact(bootloaderProgramHash *big.Int, taskFacts []core.Fact) core.Fact {
	acc := core.FactFromBig(bootloaderProgramHash)
	for _, tf := range taskFacts {
		acc = core.NewWordsHasher().Fact(acc).Fact(tf).Sum()
	}
	return acc
}
