package storage

import (
	"math"
	"sort"
)

// ZSetMember represents a sorted set member with score
type ZSetMember struct {
	Member string
	Score  float64
}

// ZSetValue is an immutable sorted set. Members are ordered by score, ties
// broken by member bytes.
type ZSetValue struct {
	scores map[string]float64
	sorted []ZSetMember
}

// NewZSetValue builds a sorted set. A repeated member keeps its last score.
func NewZSetValue(members ...ZSetMember) *ZSetValue {
	scores := make(map[string]float64, len(members))
	for _, m := range members {
		scores[m.Member] = m.Score
	}
	return buildZSet(scores)
}

func buildZSet(scores map[string]float64) *ZSetValue {
	sorted := make([]ZSetMember, 0, len(scores))
	for member, score := range scores {
		sorted = append(sorted, ZSetMember{Member: member, Score: score})
	}
	sort.Slice(sorted, func(i, j int) bool {
		return lessMember(sorted[i], sorted[j])
	})
	return &ZSetValue{scores: scores, sorted: sorted}
}

func lessMember(a, b ZSetMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

// Len returns the number of members
func (z *ZSetValue) Len() int {
	return len(z.sorted)
}

// Score returns the score of member
func (z *ZSetValue) Score(member string) (float64, bool) {
	score, ok := z.scores[member]
	return score, ok
}

// Members returns all members in order. The slice must not be modified.
func (z *ZSetValue) Members() []ZSetMember {
	return z.sorted
}

// With returns a new set with members added or their scores replaced
func (z *ZSetValue) With(members ...ZSetMember) *ZSetValue {
	scores := make(map[string]float64, len(z.scores)+len(members))
	for member, score := range z.scores {
		scores[member] = score
	}
	for _, m := range members {
		scores[m.Member] = m.Score
	}
	return buildZSet(scores)
}

// Without returns a new set lacking the given members
func (z *ZSetValue) Without(members ...string) *ZSetValue {
	scores := make(map[string]float64, len(z.scores))
	for member, score := range z.scores {
		scores[member] = score
	}
	for _, m := range members {
		delete(scores, m)
	}
	return buildZSet(scores)
}

// Range returns members between start and stop rank inclusive. Negative
// indexes count from the end.
func (z *ZSetValue) Range(start, stop int) []ZSetMember {
	from, to, ok := NormalizeRange(start, stop, len(z.sorted))
	if !ok {
		return nil
	}
	return z.sorted[from : to+1]
}

// ScoreBound is one end of a score interval
type ScoreBound struct {
	Value     float64
	Exclusive bool
}

// RangeByScore returns members whose score lies within min and max
func (z *ZSetValue) RangeByScore(min, max ScoreBound) []ZSetMember {
	var result []ZSetMember
	for _, m := range z.sorted {
		if m.Score < min.Value || (min.Exclusive && m.Score == min.Value) {
			continue
		}
		if m.Score > max.Value || (max.Exclusive && m.Score == max.Value) {
			break
		}
		result = append(result, m)
	}
	return result
}

// Equal compares members and scores
func (z *ZSetValue) Equal(o *ZSetValue) bool {
	if o == nil || len(z.sorted) != len(o.sorted) {
		return false
	}
	for i := range z.sorted {
		if z.sorted[i] != o.sorted[i] {
			return false
		}
	}
	return true
}

// Infinity bounds used by score ranges: "+inf" is the largest float32 and
// "-inf" is the smallest positive float32. Scores at or below zero therefore
// fall outside a "-inf" lower bound.
var (
	ScoreMax = float64(math.MaxFloat32)
	ScoreMin = float64(math.SmallestNonzeroFloat32)
)

// NormalizeRange converts possibly negative inclusive indexes into bounds
// within a sequence of length n. ok is false when the range is empty.
func NormalizeRange(start, stop, n int) (int, int, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}
