package vybiumfactregistry

import (
	"math/big"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/bundle"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/events"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/memorypage"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/statement"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/utils"
)

// Fact is a 32-byte digest attesting a verified claim
type Fact = core.Fact

// PageType distinguishes regular and continuous pages
type PageType = core.PageType

const (
	RegularPage    = core.RegularPage
	ContinuousPage = core.ContinuousPage
)

// MemoryPageFact is a committed memory page
type MemoryPageFact = memorypage.MemoryPageFact

// PageInfo is the product and size of a committed page
type PageInfo = memorypage.PageInfo

// Statement is one aggregation request
type Statement = statement.Statement

// PageRef names a committed page by hash and product
type PageRef = statement.PageRef

// TaskDescriptor declares the pages of one task
type TaskDescriptor = statement.TaskDescriptor

// StatementResult describes a registered aggregate fact
type StatementResult = statement.Result

// Bundle is a decoded verifier input (input.json)
type Bundle = bundle.Bundle

// Config represents the registry configuration
type Config = utils.Config

// Sub-configurations
type (
	StorageConfig   = utils.StorageConfig
	ReferenceConfig = utils.ReferenceConfig
	EventsConfig    = utils.EventsConfig
	LogConfig       = utils.LogConfig
)

// Event records
type (
	PageRegistered      = events.PageRegistered
	StatementRegistered = events.StatementRegistered
	Emitter             = events.Emitter
)

// BundleResult describes a registered bundle.
type BundleResult struct {
	// Pages in registration order: the regular page first, if any.
	Pages []*MemoryPageFact
	// Statement is nil when the bundle carries no task metadata.
	Statement *StatementResult
	// CairoAuxInput is public_input, z, alpha as passed to the verifier.
	CairoAuxInput []*big.Int
}

var (
	DefaultConfig             = utils.DefaultConfig
	LoadConfig                = utils.LoadConfig
	ParseConfig               = utils.ParseConfig
	LoadBundle                = bundle.Load
	DecodeBundle              = bundle.Decode
	ParseFact                 = core.ParseFact
	StarkPrime                = core.StarkPrime
	DecodeTaskMetadata        = statement.DecodeTaskMetadata
	PublicInputHash           = utils.PublicInputHash
	DeriveInteractionElements = utils.DeriveInteractionElements
)
