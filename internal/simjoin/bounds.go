package simjoin

import (
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Similarity-Join-Platform/pkg/errors"
)

// boundTolerance is relative to the bound. It absorbs float rounding so
// that products landing exactly on an integer, e.g. 6·0.5/1.5, do not round
// up past it, while staying far below the gap a threshold just above an
// exact ratio opens.
const boundTolerance = 1e-12

func ceilBound(x float64) int {
	return int(math.Ceil(x - math.Abs(x)*boundTolerance))
}

// ValidateThreshold accepts thresholds in (0, 1].
func ValidateThreshold(t float64) error {
	if !(t > 0 && t <= 1) {
		return fmt.Errorf("%w: %v is outside (0, 1]", apperrors.ErrInvalidThreshold, t)
	}
	return nil
}

// ProbingPrefix is the number of leading ranked tokens a record must expose
// when it is scanned against the index: L − ⌈t·L⌉ + 1.
func ProbingPrefix(length int, t float64) int {
	p := length - ceilBound(t*float64(length)) + 1
	return clampPrefix(p, length)
}

// IndexingPrefix is the shorter prefix an indexed record needs against
// partners at least as long as itself: L − ⌈2t·L/(1+t)⌉ + 1.
func IndexingPrefix(length int, t float64) int {
	p := length - ceilBound(2*t*float64(length)/(1+t)) + 1
	return clampPrefix(p, length)
}

// RequiredOverlap is the least overlap for which two records of the given
// lengths reach Jaccard similarity t: ⌈(lenA+lenB)·t/(1+t)⌉.
func RequiredOverlap(lenA, lenB int, t float64) int {
	return ceilBound(float64(lenA+lenB) * t / (1 + t))
}

// LengthCompatible reports whether the length filter lets the pair through
// in both directions.
func LengthCompatible(lenA, lenB int, t float64) bool {
	a, b := float64(lenA), float64(lenB)
	return a >= t*b*(1-boundTolerance) && b >= t*a*(1-boundTolerance)
}

// Jaccard returns |A∩B| / |A∪B| given the overlap and both lengths.
func Jaccard(overlap, lenA, lenB int) float64 {
	union := lenA + lenB - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

func clampPrefix(p, length int) int {
	if p > length {
		return length
	}
	if p < 0 {
		return 0
	}
	return p
}
