package simjoin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func records(side Side, sets ...[]string) []*Record {
	out := make([]*Record, len(sets))
	for i, s := range sets {
		out[i] = &Record{ID: i, Key: string(rune('a' + i)), Side: side, Length: len(s), Ranked: append([]string(nil), s...)}
	}
	return out
}

func TestSelfDocFrequency(t *testing.T) {
	recs := records(SideLeft,
		[]string{"x", "y", "z"},
		[]string{"x", "y"},
		[]string{"x"},
	)
	df := NewSelfDocFrequency(recs)

	assert.Equal(t, uint64(3), df.Frequency("x"))
	assert.Equal(t, uint64(2), df.Frequency("y"))
	assert.Equal(t, uint64(1), df.Frequency("z"))
	assert.Equal(t, uint64(0), df.Frequency("missing"))
	assert.False(t, df.IsWidow("z"))
	assert.Equal(t, []DocFreq{{"z", 1}, {"y", 2}, {"x", 3}}, df.Entries())

	df.Rank(recs[0])
	assert.Equal(t, []string{"z", "y", "x"}, recs[0].Ranked)
	assert.Equal(t, []int32{0, 1, 2}, recs[0].ranks)
}

func TestInnerDocFrequencyWidows(t *testing.T) {
	left := records(SideLeft,
		[]string{"a", "b"},
		[]string{"a", "l"},
	)
	right := records(SideRight,
		[]string{"a", "b", "r"},
		[]string{"a"},
		[]string{"b"},
	)
	df := NewInnerDocFrequency(left, right)

	assert.Equal(t, uint64(2*2), df.Frequency("a"))
	assert.Equal(t, uint64(1*2), df.Frequency("b"))
	assert.Equal(t, uint64(2*3+1), df.WidowFrequency())
	assert.Equal(t, df.WidowFrequency(), df.Frequency("l"))
	assert.Equal(t, df.WidowFrequency(), df.Frequency("r"))
	assert.True(t, df.IsWidow("l"))
	assert.True(t, df.IsWidow("r"))
	assert.False(t, df.IsWidow("a"))

	assert.Equal(t, []DocFreq{{"b", 2}, {"a", 4}, {"l", 7}, {"r", 7}}, df.Entries())

	df.Rank(right[0])
	assert.Equal(t, []string{"b", "a", "r"}, right[0].Ranked)
}

func TestDocFrequencyRelease(t *testing.T) {
	df := NewSelfDocFrequency(records(SideLeft, []string{"a"}))
	df.Release()
	assert.Empty(t, df.Entries())
	assert.Equal(t, uint64(0), df.Frequency("a"))
}
