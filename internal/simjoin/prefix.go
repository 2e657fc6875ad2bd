package simjoin

import "sort"

// Role is the part a record plays in candidate generation.
type Role uint8

const (
	// RoleIndexing records seed the inverted prefix index.
	RoleIndexing Role = iota
	// RoleProbing records are scanned against that index.
	RoleProbing
)

func (r Role) String() string {
	if r == RoleProbing {
		return "probing"
	}
	return "indexing"
}

// Prefix is the leading part of a ranked record that takes part in candidate
// generation. Positions up to Bound always count. An indexed record of a
// two-collection join may extend Length past Bound; those extra positions
// only pair with strictly shorter probing records, against which the
// indexing bound does not hold.
type Prefix struct {
	Record *Record
	Role   Role
	Length int
	Bound  int
}

// Occurrences lists the tokens inside the prefix.
func (p Prefix) Occurrences() []TokenOccurrence {
	return p.Record.Occurrences()[:p.Length]
}

// admits reports whether the indexed token at pos may pair with a probing
// record of length probeLen.
func (p Prefix) admits(pos, probeLen int) bool {
	return pos <= p.Bound || p.Record.Length > probeLen
}

// PrefixBuilder sizes prefixes for a threshold.
type PrefixBuilder struct {
	Threshold float64
}

// Indexing returns the indexing-role prefix of r. With extended set the
// prefix is materialized up to the probing bound.
func (b PrefixBuilder) Indexing(r *Record, extended bool) Prefix {
	bound := IndexingPrefix(r.Length, b.Threshold)
	length := bound
	if extended {
		length = ProbingPrefix(r.Length, b.Threshold)
	}
	return Prefix{Record: r, Role: RoleIndexing, Length: length, Bound: bound}
}

// Probing returns the probing-role prefix of r.
func (b PrefixBuilder) Probing(r *Record) Prefix {
	n := ProbingPrefix(r.Length, b.Threshold)
	return Prefix{Record: r, Role: RoleProbing, Length: n, Bound: n}
}

// AssignRoles picks the indexing side of a two-collection join. Widow tokens
// are counted inside each side's indexing-length prefixes; the side holding
// more of them is indexed, ties index the right side. Records must already be
// ranked.
func (b PrefixBuilder) AssignRoles(left, right []*Record, df *DocFrequencyIndex) Side {
	if b.countWidows(left, df) > b.countWidows(right, df) {
		return SideLeft
	}
	return SideRight
}

func (b PrefixBuilder) countWidows(records []*Record, df *DocFrequencyIndex) int {
	n := 0
	for _, r := range records {
		for _, tok := range r.Ranked[:IndexingPrefix(r.Length, b.Threshold)] {
			if df.IsWidow(tok) {
				n++
			}
		}
	}
	return n
}

// selfJoinOrder sorts records by (length, key, id). A self-join only pairs a
// record with those before it in this order.
func selfJoinOrder(records []*Record) []*Record {
	ordered := make([]*Record, len(records))
	copy(ordered, records)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Length != b.Length {
			return a.Length < b.Length
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.ID < b.ID
	})
	return ordered
}
