package simjoin

import (
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// DocFrequencyIndex ranks tokens by how many records contain them. For
// self-joins the frequency is the number of records holding the token; for
// two-collection joins it is countL·countR, and tokens seen on only one side
// ("widows") get |L|·|R|+1 so they sort after every shared token.
type DocFrequencyIndex struct {
	inner    bool
	postings [2]map[string]*roaring.Bitmap
	sizes    [2]int
	entries  []DocFreq
	rank     map[string]int32
}

// NewSelfDocFrequency indexes the records of a single collection.
func NewSelfDocFrequency(records []*Record) *DocFrequencyIndex {
	d := &DocFrequencyIndex{}
	d.add(SideLeft, records)
	d.finish()
	return d
}

// NewInnerDocFrequency indexes both sides of a two-collection join.
func NewInnerDocFrequency(left, right []*Record) *DocFrequencyIndex {
	d := &DocFrequencyIndex{inner: true}
	d.add(SideLeft, left)
	d.add(SideRight, right)
	d.finish()
	return d
}

func (d *DocFrequencyIndex) add(side Side, records []*Record) {
	postings := make(map[string]*roaring.Bitmap)
	for _, r := range records {
		for _, tok := range r.Ranked {
			bm, ok := postings[tok]
			if !ok {
				bm = roaring.New()
				postings[tok] = bm
			}
			bm.Add(uint32(r.ID))
		}
	}
	d.postings[side] = postings
	d.sizes[side] = len(records)
}

func (d *DocFrequencyIndex) finish() {
	seen := make(map[string]struct{}, len(d.postings[SideLeft])+len(d.postings[SideRight]))
	d.entries = make([]DocFreq, 0, len(d.postings[SideLeft]))
	for _, postings := range d.postings {
		for tok := range postings {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			d.entries = append(d.entries, DocFreq{Token: tok, Frequency: d.Frequency(tok)})
		}
	}
	sort.Slice(d.entries, func(i, j int) bool {
		a, b := d.entries[i], d.entries[j]
		if a.Frequency != b.Frequency {
			return a.Frequency < b.Frequency
		}
		return a.Token < b.Token
	})
	d.rank = make(map[string]int32, len(d.entries))
	for i, e := range d.entries {
		d.rank[e.Token] = int32(i)
	}
}

func (d *DocFrequencyIndex) count(side Side, token string) uint64 {
	if bm, ok := d.postings[side][token]; ok {
		return bm.GetCardinality()
	}
	return 0
}

// WidowFrequency is the placeholder frequency of one-sided tokens.
func (d *DocFrequencyIndex) WidowFrequency() uint64 {
	return uint64(d.sizes[SideLeft])*uint64(d.sizes[SideRight]) + 1
}

// IsWidow reports whether token occurs on exactly one side of an inner join.
func (d *DocFrequencyIndex) IsWidow(token string) bool {
	if !d.inner {
		return false
	}
	return (d.count(SideLeft, token) == 0) != (d.count(SideRight, token) == 0)
}

// Frequency returns the ranking weight of token, or 0 if no record has it.
func (d *DocFrequencyIndex) Frequency(token string) uint64 {
	if !d.inner {
		return d.count(SideLeft, token)
	}
	l, r := d.count(SideLeft, token), d.count(SideRight, token)
	switch {
	case l == 0 && r == 0:
		return 0
	case l == 0 || r == 0:
		return d.WidowFrequency()
	default:
		return l * r
	}
}

// Entries lists every token ordered by (frequency, token).
func (d *DocFrequencyIndex) Entries() []DocFreq {
	return d.entries
}

// Len is the number of distinct tokens across all indexed records.
func (d *DocFrequencyIndex) Len() int {
	return len(d.entries)
}

// Rank reorders r's tokens by (frequency, token) and records their global
// ranks. Every token of r must have been indexed.
func (d *DocFrequencyIndex) Rank(r *Record) {
	sort.Slice(r.Ranked, func(i, j int) bool {
		return d.rank[r.Ranked[i]] < d.rank[r.Ranked[j]]
	})
	r.ranks = make([]int32, len(r.Ranked))
	for i, tok := range r.Ranked {
		r.ranks[i] = d.rank[tok]
	}
}

// Release drops the bitmaps and rank tables.
func (d *DocFrequencyIndex) Release() {
	d.postings = [2]map[string]*roaring.Bitmap{}
	d.entries = nil
	d.rank = nil
}
