package vybiumfactregistry

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/bundle"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/events"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/facts"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/memorypage"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/statement"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/storage/redisstore"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/storage/sqlstore"
)

// Registry is a composed fact registry: persistence, optional delegation,
// page commitment, statement aggregation and event fan-out.
type Registry struct {
	config     *Config
	logger     *zap.Logger
	facts      *facts.Delegating
	engine     *memorypage.Engine
	aggregator *statement.Aggregator
	feed       *events.Feed
	closers    []func() error
}

// Option configures New
type Option func(*options)

type options struct {
	logger   *zap.Logger
	clock    facts.Clock
	emitters []events.Emitter
}

// WithLogger sets the logger shared by every component
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces the wall clock used for the referral window
func WithClock(clock facts.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithEmitter adds an event sink
func WithEmitter(emitter Emitter) Option {
	return func(o *options) { o.emitters = append(o.emitters, emitter) }
}

// New composes a registry from cfg. A nil cfg means DefaultConfig().
func New(ctx context.Context, cfg *Config, opts ...Option) (_ *Registry, err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop(), clock: facts.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	r := &Registry{config: cfg, logger: o.logger}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	primary, err := r.openPrimary(ctx)
	if err != nil {
		return nil, err
	}
	var reference facts.Querier
	if cfg.Reference.Driver == "redis" {
		ref, err := redisstore.Open(ctx, redisstore.Config{Addr: cfg.Reference.RedisAddr, Key: cfg.Reference.RedisKey}, r.logger.Named("reference"))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, ref.Close)
		reference = ref
	}
	r.facts, err = facts.NewDelegating(ctx, primary, reference, cfg.ReferralDurationSeconds, o.clock)
	if err != nil {
		return nil, err
	}

	r.feed = events.NewFeed()
	r.closers = append(r.closers, func() error { r.feed.Close(); return nil })
	sinks := []events.Emitter{r.feed, events.NewLogSink(r.logger.Named("events"))}
	if cfg.Events.AMQPURL != "" {
		pub, err := events.DialAMQP(events.AMQPConfig{URL: cfg.Events.AMQPURL, Exchange: cfg.Events.Exchange})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, pub.Close)
		sinks = append(sinks, pub)
	}
	emitter := events.NewMulti(r.logger, append(sinks, o.emitters...)...)

	field, err := core.NewField(cfg.FieldModulus)
	if err != nil {
		return nil, core.Wrap(core.ErrConfig, err, "field modulus")
	}
	r.engine, err = memorypage.NewEngine(field, r.facts,
		memorypage.WithLogger(r.logger.Named("memorypage")),
		memorypage.WithEmitter(emitter))
	if err != nil {
		return nil, err
	}

	if cfg.BootloaderProgramHash != nil {
		r.aggregator, err = statement.NewAggregator(r.engine, r.facts, statement.Config{
			BootloaderProgramHash: cfg.BootloaderProgramHash,
			SupportedVerifierIDs:  cfg.SupportedVerifierIDs,
		},
			statement.WithField(field),
			statement.WithLogger(r.logger.Named("statement")),
			statement.WithEmitter(emitter))
		if err != nil {
			return nil, err
		}
	}

	fields := []zap.Field{
		zap.String("storage", cfg.Storage.Driver),
		zap.String("reference", cfg.Reference.Driver),
		zap.Bool("aggregation", r.aggregator != nil),
	}
	if r.facts.Reference() != nil {
		fields = append(fields, zap.Time("referral_expires", r.facts.ReferralExpiration()))
	}
	r.logger.Info("fact registry ready", fields...)
	return r, nil
}

func (r *Registry) openPrimary(ctx context.Context) (*facts.Store, error) {
	s := r.config.Storage
	var backend facts.Backend
	switch s.Driver {
	case "memory":
		return facts.NewStore(), nil
	case "sqlite", "mysql":
		db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: s.Driver, DSN: s.DSN})
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, db.Close)
		backend = db
	case "redis":
		rs, err := redisstore.Open(ctx, redisstore.Config{Addr: s.RedisAddr, Key: s.RedisKey}, r.logger.Named("storage"))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, rs.Close)
		backend = rs
	default:
		return nil, core.Configf("unsupported storage driver %q", s.Driver)
	}
	store, err := facts.Open(ctx, backend)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("fact store loaded", zap.String("driver", s.Driver), zap.Int("facts", store.Len()))
	return store, nil
}

// IsValid reports whether fact is registered here, or at the reference
// registry while the referral window is open.
func (r *Registry) IsValid(fact Fact) bool {
	return r.facts.IsValid(fact)
}

// RegisterRegularPage commits interleaved (address, value) pairs
func (r *Registry) RegisterRegularPage(ctx context.Context, pairs []*big.Int, z, alpha, prime *big.Int) (*MemoryPageFact, error) {
	return r.engine.RegisterRegularPage(ctx, pairs, z, alpha, prime)
}

// RegisterContinuousPage commits values stored from startAddr on
func (r *Registry) RegisterContinuousPage(ctx context.Context, startAddr *big.Int, values []*big.Int, z, alpha, prime *big.Int) (*MemoryPageFact, error) {
	return r.engine.RegisterContinuousPage(ctx, startAddr, values, z, alpha, prime)
}

// RegisterStatement registers the aggregate fact of st.
func (r *Registry) RegisterStatement(ctx context.Context, st Statement) (*StatementResult, error) {
	if r.aggregator == nil {
		return nil, core.Configf("statement aggregation needs bootloader_program_hash")
	}
	return r.aggregator.Register(ctx, st)
}

// RegisterBundle registers every page of b in order, then, when b carries
// task metadata, the statement over its continuous pages. Pages registered
// before a failure stay registered.
func (r *Registry) RegisterBundle(ctx context.Context, b *Bundle) (*BundleResult, error) {
	if b == nil {
		return nil, core.Validationf("bundle is nil")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	tasks, err := b.Tasks()
	if err != nil {
		return nil, err
	}
	z, alpha := b.ZAlpha()
	prime := r.engine.Field().Modulus()
	res := &BundleResult{CairoAuxInput: b.CairoAuxInput()}

	if rp := b.MemoryPageFacts.RegularPage; rp != nil {
		page, err := r.engine.RegisterRegularPage(ctx, bundle.Ints(rp.MemoryPairs), z, alpha, prime)
		if err != nil {
			return nil, err
		}
		res.Pages = append(res.Pages, page)
	}
	refs := make([]PageRef, 0, len(b.MemoryPageFacts.ContinuousPages))
	for _, cp := range b.MemoryPageFacts.ContinuousPages {
		page, err := r.engine.RegisterContinuousPage(ctx, cp.StartAddr.ToInt(), bundle.Ints(cp.Values), z, alpha, prime)
		if err != nil {
			return nil, err
		}
		res.Pages = append(res.Pages, page)
		refs = append(refs, PageRef{Hash: page.PageHash, Product: page.Product})
	}

	if len(tasks) == 0 {
		return res, nil
	}
	declared := r.config.BootloaderProgramHash
	if b.BootloaderProgramHash != nil {
		declared = b.BootloaderProgramHash.ToInt()
	}
	res.Statement, err = r.RegisterStatement(ctx, Statement{
		VerifierID:            b.VerifierID(),
		BootloaderProgramHash: declared,
		Pages:                 refs,
		Tasks:                 tasks,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// PageInfo returns the product and size of the first page under pageHash
func (r *Registry) PageInfo(pageHash Fact) (PageInfo, error) {
	return r.engine.PageInfo(pageHash)
}

// Lookup returns the page under pageHash with the given product
func (r *Registry) Lookup(pageHash Fact, product *big.Int) (*MemoryPageFact, error) {
	return r.engine.Lookup(pageHash, product)
}

// Page returns the page at index
func (r *Registry) Page(index uint64) (*MemoryPageFact, error) {
	return r.engine.Page(index)
}

// PageCount returns the number of committed pages
func (r *Registry) PageCount() int {
	return r.engine.PageCount()
}

// SubscribePages delivers every newly committed page to ch. Delivery is
// asynchronous: registration never waits on ch, but an undrained ch holds up
// later records for every subscriber until it is unsubscribed.
func (r *Registry) SubscribePages(ch chan<- PageRegistered) event.Subscription {
	return r.feed.SubscribePages(ch)
}

// SubscribeStatements delivers every newly registered statement to ch, on
// the same terms as SubscribePages.
func (r *Registry) SubscribeStatements(ch chan<- StatementRegistered) event.Subscription {
	return r.feed.SubscribeStatements(ch)
}

// Close ends subscriptions and releases storage and broker connections
func (r *Registry) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}
