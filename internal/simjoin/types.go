// Package simjoin computes Jaccard similarity joins with prefix filtering.
//
// Tokens are ranked by ascending document frequency so that rare tokens come
// first. Two records whose similarity reaches the threshold must share a token
// inside a short prefix of their ranked lists, which bounds the candidate
// pairs that have to be verified. The pipeline is
// Tokenize → DocFrequency → Prefix → Candidates → Verify → Cleanup and every
// intermediate structure lives only for the duration of one join.
package simjoin

// Side identifies which input collection a record came from. Self-joins only
// use SideLeft.
type Side uint8

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Row is one stored tuple projected onto its key and join attribute.
type Row struct {
	Key   string
	Value string
}

// Collection is the projection of a stored relation onto (key, attribute).
type Collection struct {
	Name     string
	KeyAttr  string
	JoinAttr string
	Rows     []Row
}

// Record is a tokenized row. ID is the row's ordinal within its collection.
// Ranked holds the distinct tokens ordered by (frequency, token) once the
// document frequencies are known; before that it holds them in tokenizer
// order.
type Record struct {
	ID     int
	Key    string
	Side   Side
	Length int
	Ranked []string

	// ranks mirrors Ranked with each token's global rank.
	ranks []int32
}

// Occurrences lists the record's tokens with their 1-based positions.
func (r *Record) Occurrences() []TokenOccurrence {
	occ := make([]TokenOccurrence, len(r.Ranked))
	for i, tok := range r.Ranked {
		occ[i] = TokenOccurrence{RecordID: r.ID, Token: tok, Position: i + 1}
	}
	return occ
}

// TokenOccurrence places a token at a 1-based position of a ranked record.
type TokenOccurrence struct {
	RecordID int
	Token    string
	Position int
}

// DocFreq is the ranking weight of a token.
type DocFreq struct {
	Token     string
	Frequency uint64
}

// CandidatePair survived the prefix, length and positional filters. A is the
// indexed record (for self-joins the earlier one), B the probing record.
type CandidatePair struct {
	IDA           int
	IDB           int
	MaxPosA       int
	MaxPosB       int
	PrefixOverlap int
}

// MatchPair holds the keys of two records whose similarity reached the
// threshold.
type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Relation is a named result set of key pairs.
type Relation struct {
	Name    string      `json:"name"`
	Columns [2]string   `json:"columns"`
	Pairs   []MatchPair `json:"pairs"`
}
