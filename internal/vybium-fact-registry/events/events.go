// Package events carries the records emitted after successful page
// registrations and statement aggregations.
package events

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// PageRegistered is emitted once per newly committed memory page. Field
// elements are carried as 0x-prefixed hex.
type PageRegistered struct {
	ID           string        `json:"id"`
	Index        uint64        `json:"index"`
	Type         core.PageType `json:"type"`
	PageHash     core.Fact     `json:"page_hash"`
	Fact         core.Fact     `json:"fact"`
	Product      *hexutil.Big  `json:"product"`
	Size         uint64        `json:"size"`
	StartAddress *hexutil.Big  `json:"start_address,omitempty"`
}

// StatementRegistered is emitted once per successful aggregation.
type StatementRegistered struct {
	ID            string      `json:"id"`
	AggregateFact core.Fact   `json:"aggregate_fact"`
	TaskCount     int         `json:"task_count"`
	TaskFacts     []core.Fact `json:"task_facts"`
	VerifierID    uint64      `json:"verifier_id"`
}

// NewID returns a fresh record identifier
func NewID() string {
	return uuid.NewString()
}

// Emitter receives committed records. An emitter error never undoes the
// commit it reports.
type Emitter interface {
	EmitPage(ctx context.Context, ev PageRegistered) error
	EmitStatement(ctx context.Context, ev StatementRegistered) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) EmitPage(context.Context, PageRegistered) error           { return nil }
func (Nop) EmitStatement(context.Context, StatementRegistered) error { return nil }

// Multi fans records out to several emitters. Failures are logged and the
// remaining emitters still run.
type Multi struct {
	emitters []Emitter
	logger   *zap.Logger
}

// NewMulti creates a fan-out emitter
func NewMulti(logger *zap.Logger, emitters ...Emitter) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{emitters: emitters, logger: logger}
}

// EmitPage forwards ev to every emitter
func (m *Multi) EmitPage(ctx context.Context, ev PageRegistered) error {
	var first error
	for _, e := range m.emitters {
		if err := e.EmitPage(ctx, ev); err != nil {
			m.logger.Warn("page event delivery failed", zap.String("id", ev.ID), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// EmitStatement forwards ev to every emitter
func (m *Multi) EmitStatement(ctx context.Context, ev StatementRegistered) error {
	var first error
	for _, e := range m.emitters {
		if err := e.EmitStatement(ctx, ev); err != nil {
			m.logger.Warn("statement event delivery failed", zap.String("id", ev.ID), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}
