package simjoin

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ctxCheckEvery is how many records a worker processes between checks for
// cancellation.
const ctxCheckEvery = 64

type posting struct {
	prefix int32
	pos    int32
}

type aggregate struct {
	maxPosA int
	maxPosB int
	overlap int
}

// CandidateGenerator pairs probing prefixes with indexed prefixes that share
// a token, under the length and positional filters.
type CandidateGenerator struct {
	Threshold float64
	Workers   int
	// SelfJoin makes indexed and probing the same slice in self-join order;
	// a probing record then only pairs with records placed before it.
	SelfJoin bool
}

// Index is the inverted index over the indexed prefixes of one join.
type Index struct {
	indexed  []Prefix
	postings map[string][]posting
	size     int
}

// NewIndex maps every token of the indexed prefixes to its postings. Tokens
// for which skip returns true are left out.
func NewIndex(indexed []Prefix, skip func(token string) bool) *Index {
	ix := &Index{indexed: indexed, postings: make(map[string][]posting)}
	for i, p := range indexed {
		for pos := 1; pos <= p.Length; pos++ {
			tok := p.Record.Ranked[pos-1]
			if skip != nil && skip(tok) {
				continue
			}
			ix.postings[tok] = append(ix.postings[tok], posting{prefix: int32(i), pos: int32(pos)})
			ix.size++
		}
	}
	return ix
}

// Postings is the number of (record, token) entries in the index.
func (ix *Index) Postings() int { return ix.size }

// Contains reports whether tok has postings.
func (ix *Index) Contains(tok string) bool {
	_, ok := ix.postings[tok]
	return ok
}

// Generate probes ix with every probing prefix and returns the candidate
// pairs sorted by (IDA, IDB).
func (g CandidateGenerator) Generate(ctx context.Context, ix *Index, probing []Prefix) ([]CandidatePair, error) {
	ranges := shardRanges(len(probing), g.Workers)
	results := make([][]CandidatePair, len(ranges))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workerCount(g.Workers))
	for s, rng := range ranges {
		eg.Go(func() error {
			out, err := g.probe(egCtx, ix.postings, ix.indexed, probing, rng[0], rng[1])
			results[s] = out
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	candidates := make([]CandidatePair, 0, total)
	for _, r := range results {
		candidates = append(candidates, r...)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IDA != candidates[j].IDA {
			return candidates[i].IDA < candidates[j].IDA
		}
		return candidates[i].IDB < candidates[j].IDB
	})
	return candidates, nil
}

func (g CandidateGenerator) probe(ctx context.Context, index map[string][]posting, indexed, probing []Prefix, lo, hi int) ([]CandidatePair, error) {
	var out []CandidatePair
	acc := make(map[int32]*aggregate)
	var seen []int32
	for b := lo; b < hi; b++ {
		if (b-lo)%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		pb := probing[b]
		lenB := pb.Record.Length
		clear(acc)
		seen = seen[:0]

		for posB := 1; posB <= pb.Length; posB++ {
			for _, e := range index[pb.Record.Ranked[posB-1]] {
				if g.SelfJoin && int(e.prefix) >= b {
					break
				}
				pa := indexed[e.prefix]
				lenA, posA := pa.Record.Length, int(e.pos)
				if !pa.admits(posA, lenB) || !LengthCompatible(lenA, lenB, g.Threshold) {
					continue
				}
				if min(lenA-posA+1, lenB-posB+1) < RequiredOverlap(lenA, lenB, g.Threshold) {
					continue
				}
				ag, ok := acc[e.prefix]
				if !ok {
					ag = &aggregate{}
					acc[e.prefix] = ag
					seen = append(seen, e.prefix)
				}
				ag.overlap++
				ag.maxPosA = max(ag.maxPosA, posA)
				ag.maxPosB = max(ag.maxPosB, posB)
			}
		}

		for _, a := range seen {
			ag := acc[a]
			out = append(out, CandidatePair{
				IDA:           indexed[a].Record.ID,
				IDB:           pb.Record.ID,
				MaxPosA:       ag.maxPosA,
				MaxPosB:       ag.maxPosB,
				PrefixOverlap: ag.overlap,
			})
		}
	}
	return out, nil
}

// shardRanges splits [0, n) into contiguous half-open ranges, a few per
// worker so that uneven record sizes even out.
func shardRanges(n, workers int) [][2]int {
	if n == 0 {
		return nil
	}
	parts := workerCount(workers) * 4
	size := (n + parts - 1) / parts
	ranges := make([][2]int, 0, parts)
	for lo := 0; lo < n; lo += size {
		ranges = append(ranges, [2]int{lo, min(lo+size, n)})
	}
	return ranges
}

func workerCount(workers int) int {
	if workers < 1 {
		return 1
	}
	return workers
}
