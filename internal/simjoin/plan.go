package simjoin

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/internal/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

// JoinPlan is either a SelfJoin or an InnerJoin.
type JoinPlan interface {
	Kind() string
	keyAttrs() (left, right string)
	strategy() strategy
}

// SelfJoin matches a collection against itself, one direction per pair.
type SelfJoin struct {
	Input Collection
}

// InnerJoin matches the records of two collections.
type InnerJoin struct {
	Left  Collection
	Right Collection
}

// NewPlan returns a SelfJoin when right is nil or names the left collection.
func NewPlan(left Collection, right *Collection) JoinPlan {
	if right == nil || right.Name == left.Name {
		return SelfJoin{Input: left}
	}
	return InnerJoin{Left: left, Right: *right}
}

func (SelfJoin) Kind() string { return "self" }
func (InnerJoin) Kind() string { return "inner" }

func (p SelfJoin) keyAttrs() (string, string) { return p.Input.KeyAttr, p.Input.KeyAttr }
func (p InnerJoin) keyAttrs() (string, string) { return p.Left.KeyAttr, p.Right.KeyAttr }

type stageFunc func(ctx context.Context, st joinState) (joinState, error)

// strategy holds one plan arm's stage implementations. Stage functions
// always return the state they were given, updated or not, so that Cleanup
// can release whatever was built before a failure.
type strategy struct {
	tokenize     stageFunc
	docFrequency stageFunc
	prefix       stageFunc
	candidates   stageFunc
	verify       stageFunc
	bruteForce   stageFunc
}

func (p SelfJoin) strategy() strategy {
	return strategy{
		tokenize: func(ctx context.Context, st joinState) (joinState, error) {
			records, err := tokenizeCollection(ctx, p.Input, SideLeft, st.opts.Tokenizer)
			st.records[SideLeft] = records
			st.stats.LeftRecords = len(records)
			return st, err
		},
		docFrequency: func(ctx context.Context, st joinState) (joinState, error) {
			st.df = NewSelfDocFrequency(st.records[SideLeft])
			st.rankAll()
			return st, nil
		},
		prefix: func(ctx context.Context, st joinState) (joinState, error) {
			b := PrefixBuilder{Threshold: st.opts.Threshold}
			ordered := selfJoinOrder(st.records[SideLeft])
			st.indexed = make([]Prefix, len(ordered))
			st.probing = make([]Prefix, len(ordered))
			for i, r := range ordered {
				st.indexed[i] = b.Indexing(r, false)
				st.probing[i] = b.Probing(r)
			}
			return st, nil
		},
		candidates: func(ctx context.Context, st joinState) (joinState, error) {
			g := CandidateGenerator{Threshold: st.opts.Threshold, Workers: st.opts.Workers, SelfJoin: true}
			var err error
			ix := NewIndex(st.indexed, nil)
			st.stats.IndexPostings = ix.Postings()
			st.candidates, err = g.Generate(ctx, ix, st.probing)
			st.stats.Candidates = len(st.candidates)
			return st, err
		},
		verify: func(ctx context.Context, st joinState) (joinState, error) {
			records := st.records[SideLeft]
			v := Verifier{Threshold: st.opts.Threshold, Workers: st.opts.Workers}
			accepted, err := v.Verify(ctx, st.candidates, records, records)
			if err != nil {
				return st, err
			}
			for _, c := range accepted {
				st.matches = append(st.matches, MatchPair{Left: records[c.IDA].Key, Right: records[c.IDB].Key})
			}
			return st, nil
		},
		bruteForce: func(ctx context.Context, st joinState) (joinState, error) {
			records := st.records[SideLeft]
			pairs, err := BruteForceJoin{Threshold: st.opts.Threshold}.Match(ctx, records, nil, true)
			if err != nil {
				return st, err
			}
			for _, p := range pairs {
				st.matches = append(st.matches, MatchPair{Left: records[p.IDA].Key, Right: records[p.IDB].Key})
			}
			return st, nil
		},
	}
}

func (p InnerJoin) strategy() strategy {
	return strategy{
		tokenize: func(ctx context.Context, st joinState) (joinState, error) {
			left, err := tokenizeCollection(ctx, p.Left, SideLeft, st.opts.Tokenizer)
			st.records[SideLeft] = left
			st.stats.LeftRecords = len(left)
			if err != nil {
				return st, err
			}
			right, err := tokenizeCollection(ctx, p.Right, SideRight, st.opts.Tokenizer)
			st.records[SideRight] = right
			st.stats.RightRecords = len(right)
			return st, err
		},
		docFrequency: func(ctx context.Context, st joinState) (joinState, error) {
			st.df = NewInnerDocFrequency(st.records[SideLeft], st.records[SideRight])
			st.rankAll()
			return st, nil
		},
		prefix: func(ctx context.Context, st joinState) (joinState, error) {
			b := PrefixBuilder{Threshold: st.opts.Threshold}
			st.indexSide = b.AssignRoles(st.records[SideLeft], st.records[SideRight], st.df)
			st.stats.IndexingSide = st.indexSide.String()
			indexRecs, probeRecs := st.records[st.indexSide], st.records[1-st.indexSide]
			st.indexed = make([]Prefix, len(indexRecs))
			for i, r := range indexRecs {
				st.indexed[i] = b.Indexing(r, true)
			}
			st.probing = make([]Prefix, len(probeRecs))
			for i, r := range probeRecs {
				st.probing[i] = b.Probing(r)
			}
			return st, nil
		},
		candidates: func(ctx context.Context, st joinState) (joinState, error) {
			g := CandidateGenerator{Threshold: st.opts.Threshold, Workers: st.opts.Workers}
			var err error
			// Widow tokens occur on one side only and can never pair.
			ix := NewIndex(st.indexed, st.df.IsWidow)
			st.stats.IndexPostings = ix.Postings()
			st.candidates, err = g.Generate(ctx, ix, st.probing)
			st.stats.Candidates = len(st.candidates)
			return st, err
		},
		verify: func(ctx context.Context, st joinState) (joinState, error) {
			indexRecs, probeRecs := st.records[st.indexSide], st.records[1-st.indexSide]
			v := Verifier{Threshold: st.opts.Threshold, Workers: st.opts.Workers}
			accepted, err := v.Verify(ctx, st.candidates, indexRecs, probeRecs)
			if err != nil {
				return st, err
			}
			for _, c := range accepted {
				a, b := indexRecs[c.IDA].Key, probeRecs[c.IDB].Key
				if st.indexSide == SideRight {
					a, b = b, a
				}
				st.matches = append(st.matches, MatchPair{Left: a, Right: b})
			}
			return st, nil
		},
		bruteForce: func(ctx context.Context, st joinState) (joinState, error) {
			left, right := st.records[SideLeft], st.records[SideRight]
			pairs, err := BruteForceJoin{Threshold: st.opts.Threshold}.Match(ctx, left, right, false)
			if err != nil {
				return st, err
			}
			for _, p := range pairs {
				st.matches = append(st.matches, MatchPair{Left: left[p.IDA].Key, Right: right[p.IDB].Key})
			}
			return st, nil
		},
	}
}

func tokenizeCollection(ctx context.Context, c Collection, side Side, tok tokenizer.Tokenizer) ([]*Record, error) {
	records := make([]*Record, 0, len(c.Rows))
	for i, row := range c.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return records, err
			}
		}
		tokens, err := tok.Tokens(row.Value)
		if err != nil {
			return records, fmt.Errorf("%w: %s row %q: %w", apperrors.ErrTokenizer, c.Name, row.Key, err)
		}
		tokens = tokenizer.Distinct(tokens)
		records = append(records, &Record{
			ID:     i,
			Key:    row.Key,
			Side:   side,
			Length: len(tokens),
			Ranked: tokens,
		})
	}
	return records, nil
}
