package statement

import (
	"math"
	"math/big"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

// TaskDescriptor declares the program and page sizes of one task.
type TaskDescriptor struct {
	ProgramHash *big.Int
	PageSizes   []uint64
}

// DecodeTaskMetadata parses the flat layout
//
//	[nTasks, (programHash, nPages, size_1 ... size_nPages) ...]
//
// Every count is read before the items it covers; the input must be consumed
// exactly.
func DecodeTaskMetadata(words []*big.Int) ([]TaskDescriptor, error) {
	r := &wordReader{words: words}

	nTasks, err := r.count("task count")
	if err != nil {
		return nil, err
	}
	// Each task takes at least two words.
	if nTasks > uint64(r.remaining())/2 {
		return nil, core.Layoutf("task count %d exceeds metadata length %d", nTasks, len(words))
	}

	tasks := make([]TaskDescriptor, 0, nTasks)
	for i := uint64(0); i < nTasks; i++ {
		programHash, err := r.next()
		if err != nil {
			return nil, core.Layoutf("task %d: missing program hash", i)
		}
		nPages, err := r.count("page count")
		if err != nil {
			return nil, core.Layoutf("task %d: %v", i, err)
		}
		if nPages > uint64(r.remaining()) {
			return nil, core.Layoutf("task %d: page count %d exceeds remaining metadata", i, nPages)
		}
		sizes := make([]uint64, nPages)
		for j := range sizes {
			if sizes[j], err = r.count("page size"); err != nil {
				return nil, core.Layoutf("task %d page %d: %v", i, j, err)
			}
		}
		tasks = append(tasks, TaskDescriptor{ProgramHash: programHash, PageSizes: sizes})
	}
	if r.remaining() != 0 {
		return nil, core.Layoutf("%d trailing metadata words", r.remaining())
	}
	return tasks, nil
}

// EncodeTaskMetadata is the inverse of DecodeTaskMetadata.
func EncodeTaskMetadata(tasks []TaskDescriptor) []*big.Int {
	out := []*big.Int{new(big.Int).SetUint64(uint64(len(tasks)))}
	for _, t := range tasks {
		out = append(out, new(big.Int).Set(t.ProgramHash), new(big.Int).SetUint64(uint64(len(t.PageSizes))))
		for _, s := range t.PageSizes {
			out = append(out, new(big.Int).SetUint64(s))
		}
	}
	return out
}

type wordReader struct {
	words []*big.Int
	pos   int
}

func (r *wordReader) remaining() int {
	return len(r.words) - r.pos
}

func (r *wordReader) next() (*big.Int, error) {
	if r.pos >= len(r.words) {
		return nil, core.Layoutf("metadata truncated at word %d", r.pos)
	}
	w := r.words[r.pos]
	r.pos++
	if w == nil || w.Sign() < 0 {
		return nil, core.Layoutf("metadata word %d is not a field element", r.pos-1)
	}
	return new(big.Int).Set(w), nil
}

func (r *wordReader) count(what string) (uint64, error) {
	w, err := r.next()
	if err != nil {
		return 0, err
	}
	if !w.IsUint64() || w.Uint64() > math.MaxInt32 {
		return 0, core.Layoutf("%s %s is out of range", what, w)
	}
	return w.Uint64(), nil
}
