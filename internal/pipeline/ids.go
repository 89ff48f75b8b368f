package pipeline

import (
	"encoding/binary"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// ID strategies accepted by NewIDGenerator.
const (
	IDStrategyUUID     = "uuid"
	IDStrategySequence = "sequence"
	IDStrategyRange    = "range"
)

// IDGenerator hands out sentiment_id values. A generator serves one run and
// never repeats a value within it.
type IDGenerator interface {
	Next() (int64, error)
}

// NewIDGenerator returns the generator for strategy. start seeds the
// sequence strategy.
func NewIDGenerator(strategy string, start time.Time) (IDGenerator, error) {
	switch strategy {
	case IDStrategyUUID, "":
		return NewUUIDGenerator(), nil
	case IDStrategySequence:
		return NewSequenceGenerator(start), nil
	case IDStrategyRange:
		return NewRangeGenerator(rand.New(rand.NewPCG(uint64(start.UnixNano()), rand.Uint64()))), nil
	default:
		return nil, eris.Errorf("pipeline: unknown id strategy %q", strategy)
	}
}

// UUIDGenerator derives positive 63-bit ids from random UUIDs.
type UUIDGenerator struct {
	seen map[int64]struct{}
}

// NewUUIDGenerator creates a UUIDGenerator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{seen: make(map[int64]struct{})}
}

// Next implements IDGenerator.
func (g *UUIDGenerator) Next() (int64, error) {
	for {
		u, err := uuid.NewRandom()
		if err != nil {
			return 0, eris.Wrap(err, "pipeline: generate uuid")
		}
		id := int64(binary.BigEndian.Uint64(u[:8]) >> 1)
		if id == 0 {
			continue
		}
		if _, dup := g.seen[id]; dup {
			continue
		}
		g.seen[id] = struct{}{}
		return id, nil
	}
}

// sequenceBits is the id space each millisecond of start time reserves.
const sequenceBits = 20

// SequenceGenerator counts up from a base derived from the run start time.
// Runs started at least a millisecond apart get disjoint ranges as long as
// each draws fewer than 2^20 ids.
type SequenceGenerator struct {
	next  int64
	limit int64
}

// NewSequenceGenerator creates a SequenceGenerator seeded from start.
func NewSequenceGenerator(start time.Time) *SequenceGenerator {
	base := start.UnixMilli() << sequenceBits
	return &SequenceGenerator{next: base + 1, limit: base + 1<<sequenceBits}
}

// Next implements IDGenerator.
func (g *SequenceGenerator) Next() (int64, error) {
	if g.next >= g.limit {
		return 0, eris.New("pipeline: id sequence exhausted")
	}
	id := g.next
	g.next++
	return id, nil
}

// Range bounds of the legacy six-digit id space.
const (
	RangeMin = 100000
	RangeMax = 999999
)

// RangeGenerator draws random six-digit ids, rejecting repeats within a run.
// Different runs can collide.
type RangeGenerator struct {
	rng  *rand.Rand
	seen map[int64]struct{}
}

// NewRangeGenerator creates a RangeGenerator drawing from rng.
func NewRangeGenerator(rng *rand.Rand) *RangeGenerator {
	return &RangeGenerator{rng: rng, seen: make(map[int64]struct{})}
}

// Next implements IDGenerator.
func (g *RangeGenerator) Next() (int64, error) {
	if len(g.seen) > RangeMax-RangeMin {
		return 0, eris.New("pipeline: six-digit id range exhausted")
	}
	for {
		id := RangeMin + g.rng.Int64N(RangeMax-RangeMin+1)
		if _, dup := g.seen[id]; dup {
			continue
		}
		g.seen[id] = struct{}{}
		return id, nil
	}
}
