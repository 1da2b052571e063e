// Package compat scores how well two parent profiles fit together.
//
// Scoring is a pure function of the two profiles and a reference date (used to derive
// children's ages). It never touches storage.
package compat

import (
	"math"
	"time"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

const (
	interestWeight = 0.6
	ageWeight      = 0.4
)

// MatchScore is the breakdown of a compatibility score. All scores are in [0, 100].
type MatchScore struct {
	InterestScore   float64
	AgeScore        float64
	Total           float64
	CommonInterests []string
}

// Score computes the compatibility of a and b with children's ages taken on asOf.
// Score(a, b) and Score(b, a) produce the same numbers.
func Score(a, b domain.Profile, asOf time.Time) MatchScore {
	return ScoreAges(a.Interests, a.ChildAgesOn(asOf), b.Interests, b.ChildAgesOn(asOf))
}

// ScoreAges computes the score from raw interest tags and child ages.
func ScoreAges(interestsA []string, agesA []int, interestsB []string, agesB []int) MatchScore {
	common, interest := interestScore(interestsA, interestsB)
	age := ageScore(agesA, agesB)
	return MatchScore{
		InterestScore:   interest,
		AgeScore:        age,
		Total:           interest*interestWeight + age*ageWeight,
		CommonInterests: common,
	}
}

// interestScore returns the shared tags (in a's order) and |common| / max(|a|, |b|) * 100.
// Tags match exactly; "Sports" and "sports" are different interests.
func interestScore(a, b []string) ([]string, float64) {
	setA := distinct(a)
	setB := distinct(b)

	inB := make(map[string]struct{}, len(setB))
	for _, s := range setB {
		inB[s] = struct{}{}
	}
	common := make([]string, 0)
	for _, s := range setA {
		if _, ok := inB[s]; ok {
			common = append(common, s)
		}
	}

	denom := max(len(setA), len(setB))
	if denom == 0 {
		return common, 0
	}
	return common, float64(len(common)) / float64(denom) * 100
}

// ageScore is the mean pair score over every (childA, childB) combination.
func ageScore(a, b []int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sum := 0
	for _, x := range a {
		for _, y := range b {
			sum += pairScore(x, y)
		}
	}
	return float64(sum) / float64(len(a)*len(b))
}

func pairScore(ageA, ageB int) int {
	gap := int(math.Abs(float64(ageA - ageB)))
	switch {
	case gap <= 2:
		return 100 - gap*10
	case gap <= 4:
		return 80 - gap*5
	default:
		return max(30, 100-gap*10)
	}
}

func distinct(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
