// Package vybiumfactregistry registers facts attesting STARK-verified Cairo
// computations.
//
// A fact is a 32-byte Keccak-256 digest. The registry commits memory pages
// (sparse regular pages and dense continuous pages) into page facts, folds
// the pages of a bootloader run into one aggregate fact, and answers
// membership queries for all of them. Digests are bit-compatible with the
// on-chain keccak256 encodings, so a fact computed here can be checked
// against an EVM fact registry.
//
// # Quick Start
//
// Registering a page and checking its fact:
//
//	registry, err := vybiumfactregistry.New(ctx, vybiumfactregistry.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer registry.Close()
//
//	page, err := registry.RegisterRegularPage(ctx, pairs, z, alpha, vybiumfactregistry.StarkPrime())
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(registry.IsValid(page.Fact)) // true
//
// Registering a whole verifier input:
//
//	b, err := vybiumfactregistry.LoadBundle("input.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	result, err := registry.RegisterBundle(ctx, b)
//
// # Architecture
//
// - pkg/vybium-fact-registry/: Public API (this package)
// - internal/vybium-fact-registry/: Private implementation (not importable)
//
// Storage, delegation to a reference registry and event sinks are selected
// through Config. The registry never checks proof soundness; an aggregate
// fact is meaningful only together with the external verifier's success.
package vybiumfactregistry
