package simjoin

import (
	"context"

	"github.com/RoaringBitmap/roaring"
)

type overlapPair struct {
	IDA     int
	IDB     int
	Overlap int
}

// BruteForceJoin counts the exact overlap of every pair of records sharing at
// least one token. It does no ranking or prefixing and serves as the
// reference the prefix-filtered pipeline is checked against.
type BruteForceJoin struct {
	Threshold float64
}

// Match returns every accepted (left, right) pair. Records must be indexed by
// ID. With self set, right is ignored and each unordered pair is reported
// once, the record with the smaller (key, id) first.
func (j BruteForceJoin) Match(ctx context.Context, left, right []*Record, self bool) ([]overlapPair, error) {
	dict := make(map[string]uint32)
	leftSets := tokenBitmaps(left, dict)
	rightSets := leftSets
	if self {
		right = left
	} else {
		rightSets = tokenBitmaps(right, dict)
	}

	holders := make(map[uint32]*roaring.Bitmap, len(dict))
	for id, set := range rightSets {
		it := set.Iterator()
		for it.HasNext() {
			tok := it.Next()
			bm, ok := holders[tok]
			if !ok {
				bm = roaring.New()
				holders[tok] = bm
			}
			bm.Add(uint32(id))
		}
	}

	var out []overlapPair
	lists := make([]*roaring.Bitmap, 0, 16)
	for a, setA := range leftSets {
		if a%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		lists = lists[:0]
		it := setA.Iterator()
		for it.HasNext() {
			if bm, ok := holders[it.Next()]; ok {
				lists = append(lists, bm)
			}
		}
		if len(lists) == 0 {
			continue
		}
		partners := roaring.FastOr(lists...).Iterator()
		for partners.HasNext() {
			b := int(partners.Next())
			if self && !keyOrderLess(left[a], left[b]) {
				continue
			}
			overlap := int(setA.AndCardinality(rightSets[b]))
			if overlap >= RequiredOverlap(left[a].Length, right[b].Length, j.Threshold) {
				out = append(out, overlapPair{IDA: a, IDB: b, Overlap: overlap})
			}
		}
	}
	return out, nil
}

func tokenBitmaps(records []*Record, dict map[string]uint32) []*roaring.Bitmap {
	sets := make([]*roaring.Bitmap, len(records))
	for i, r := range records {
		bm := roaring.New()
		for _, tok := range r.Ranked {
			id, ok := dict[tok]
			if !ok {
				id = uint32(len(dict))
				dict[tok] = id
			}
			bm.Add(id)
		}
		sets[i] = bm
	}
	return sets
}

func keyOrderLess(a, b *Record) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.ID < b.ID
}
