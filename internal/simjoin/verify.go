package simjoin

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Verifier completes the overlap count of candidate pairs past their prefixes
// and keeps those reaching the required overlap.
type Verifier struct {
	Threshold float64
	Workers   int
}

// Verify returns the accepted candidates in input order. indexed and probing
// are indexed by record ID; for self-joins both are the same slice.
func (v Verifier) Verify(ctx context.Context, candidates []CandidatePair, indexed, probing []*Record) ([]CandidatePair, error) {
	ranges := shardRanges(len(candidates), v.Workers)
	results := make([][]CandidatePair, len(ranges))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workerCount(v.Workers))
	for s, rng := range ranges {
		eg.Go(func() error {
			var accepted []CandidatePair
			for i := rng[0]; i < rng[1]; i++ {
				if (i-rng[0])%ctxCheckEvery == 0 {
					if err := egCtx.Err(); err != nil {
						return err
					}
				}
				c := candidates[i]
				if v.accept(c, indexed[c.IDA], probing[c.IDB]) {
					accepted = append(accepted, c)
				}
			}
			results[s] = accepted
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []CandidatePair
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// accept rescans both ranked lists from the last matched prefix positions.
// The token at those positions is counted by both the prefix and the rescan,
// hence the −1.
func (v Verifier) accept(c CandidatePair, a, b *Record) bool {
	need := RequiredOverlap(a.Length, b.Length, v.Threshold)
	total := suffixOverlap(a.ranks[c.MaxPosA-1:], b.ranks[c.MaxPosB-1:]) + c.PrefixOverlap - 1
	return total >= need
}

// suffixOverlap counts common ranks of two ascending rank lists.
func suffixOverlap(a, b []int32) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
