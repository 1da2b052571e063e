package compat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinship-labs/parent-match-api/internal/domain"
)

var asOf = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// profileWithAges builds a profile whose children are exactly the given ages on asOf.
func profileWithAges(interests []string, ages ...int) domain.Profile {
	p := domain.Profile{Interests: interests}
	for _, a := range ages {
		p.Children = append(p.Children, domain.Child{
			Name:      "kid",
			BirthDate: asOf.AddDate(-a, 0, -1),
		})
	}
	return p
}

func TestScore_ReadingSportsVsSportsCooking(t *testing.T) {
	t.Parallel()

	a := profileWithAges([]string{"Reading", "Sports"}, 5)
	b := profileWithAges([]string{"Sports", "Cooking"}, 6)

	got := Score(a, b, asOf)
	assert.Equal(t, []string{"Sports"}, got.CommonInterests)
	assert.InDelta(t, 50, got.InterestScore, 1e-9)
	assert.InDelta(t, 90, got.AgeScore, 1e-9)
	assert.InDelta(t, 66, got.Total, 1e-9)
}

func TestScore_IdenticalProfilesScoreHundred(t *testing.T) {
	t.Parallel()

	a := profileWithAges([]string{"Hiking", "Music"}, 4)
	b := profileWithAges([]string{"Music", "Hiking"}, 4)

	got := Score(a, b, asOf)
	assert.InDelta(t, 100, got.InterestScore, 1e-9)
	assert.InDelta(t, 100, got.AgeScore, 1e-9)
	assert.InDelta(t, 100, got.Total, 1e-9)
}

func TestScore_IsSymmetric(t *testing.T) {
	t.Parallel()

	profiles := []domain.Profile{
		profileWithAges([]string{"Reading", "Sports"}, 5),
		profileWithAges([]string{"Sports", "Cooking", "Art"}, 2, 9),
		profileWithAges(nil, 3),
		profileWithAges([]string{"Art"}),
		profileWithAges([]string{"art", "Art", "Chess"}, 1, 7, 12),
		profileWithAges(nil),
	}
	for i, a := range profiles {
		for j, b := range profiles {
			ab := Score(a, b, asOf)
			ba := Score(b, a, asOf)
			require.Equalf(t, ab.Total, ba.Total, "Total(%d,%d)", i, j)
			require.Equalf(t, ab.InterestScore, ba.InterestScore, "InterestScore(%d,%d)", i, j)
			require.Equalf(t, ab.AgeScore, ba.AgeScore, "AgeScore(%d,%d)", i, j)
		}
	}
}

func TestScoreAges_EmptyInputsScoreZero(t *testing.T) {
	t.Parallel()

	got := ScoreAges(nil, nil, nil, nil)
	assert.Zero(t, got.InterestScore)
	assert.Zero(t, got.AgeScore)
	assert.Zero(t, got.Total)
	assert.Empty(t, got.CommonInterests)

	// Children on one side only: no age component.
	got = ScoreAges([]string{"A"}, []int{3}, []string{"A"}, nil)
	assert.InDelta(t, 100, got.InterestScore, 1e-9)
	assert.Zero(t, got.AgeScore)
	assert.InDelta(t, 60, got.Total, 1e-9)
}

func TestScoreAges_InterestsAreCaseSensitive(t *testing.T) {
	t.Parallel()

	got := ScoreAges([]string{"Sports"}, nil, []string{"sports"}, nil)
	assert.Empty(t, got.CommonInterests)
	assert.Zero(t, got.InterestScore)
}

func TestScoreAges_DuplicateTagsCountOnce(t *testing.T) {
	t.Parallel()

	got := ScoreAges([]string{"Art", "Art"}, nil, []string{"Art", "Chess"}, nil)
	assert.Equal(t, []string{"Art"}, got.CommonInterests)
	assert.InDelta(t, 50, got.InterestScore, 1e-9)
}

func TestPairScore_Bands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		gap  int
		want int
	}{
		{0, 100},
		{1, 90},
		{2, 80},
		{3, 65},
		{4, 60},
		{5, 50},
		{6, 40},
		{7, 30},
		{12, 30},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, pairScore(10, 10+tc.gap), "gap=%d", tc.gap)
		assert.Equalf(t, tc.want, pairScore(10+tc.gap, 10), "gap=%d reversed", tc.gap)
	}
}

func TestAgeScore_AveragesAllPairs(t *testing.T) {
	t.Parallel()

	// Pairs: (4,4)=100 (4,8)=60 (10,4)=40 (10,8)=80 -> mean 70.
	assert.InDelta(t, 70, ageScore([]int{4, 10}, []int{4, 8}), 1e-9)
}
