package matching

import (
	"math"
	"sort"

	"github.com/stayflow/stayflow-backend/internal/identity/domain"
	"github.com/stayflow/stayflow-backend/internal/pms"
)

// Scores are compared after rounding to this precision when ranking, so
// OCR-level noise in the similarity measure does not manufacture a winner
// between effectively equal candidates.
const scorePrecision = 3

// RankedCandidate pairs a reservation with its similarity score and rank.
// Ranks use competition ranking: candidates with equal rounded score and
// equal arrival date share a rank.
type RankedCandidate struct {
	Candidate pms.ReservationCandidate `json:"candidate"`
	Score     float64                  `json:"score"`
	Rank      int                      `json:"rank"`
}

// MatchResult pairs one identity with zero or more ranked candidates
type MatchResult struct {
	Identity *domain.ExtractedIdentity `json:"identity"`
	Ranked   []RankedCandidate         `json:"ranked"`
}

// Best returns the candidates sharing rank 1
func (r *MatchResult) Best() []RankedCandidate {
	var best []RankedCandidate
	for _, rc := range r.Ranked {
		if rc.Rank == 1 {
			best = append(best, rc)
		}
	}
	return best
}

// IsAmbiguous reports whether more than one candidate shares rank 1.
// Equally scored candidates are never silently collapsed; the user picks.
func (r *MatchResult) IsAmbiguous() bool {
	return len(r.Best()) > 1
}

// Matcher ranks reservation candidates by guest-name similarity
type Matcher struct {
	floor float64
}

// NewMatcher creates a matcher with the given similarity floor. Candidates
// scoring below the floor are never suggested.
func NewMatcher(floor float64) *Matcher {
	return &Matcher{floor: floor}
}

// Match scores every candidate against the identity's full name and
// returns them ranked. An empty candidate list, or all candidates below
// the floor, yields an empty ranked list and no error.
func (m *Matcher) Match(identity *domain.ExtractedIdentity, candidates []pms.ReservationCandidate) MatchResult {
	result := MatchResult{Identity: identity}
	fullName := identity.FullName()

	for _, c := range candidates {
		score := Similarity(fullName, c.GuestDisplayName)
		if score < m.floor {
			continue
		}
		result.Ranked = append(result.Ranked, RankedCandidate{Candidate: c, Score: score})
	}

	sort.SliceStable(result.Ranked, func(i, j int) bool {
		a, b := result.Ranked[i], result.Ranked[j]
		ra, rb := roundScore(a.Score), roundScore(b.Score)
		if ra != rb {
			return ra > rb
		}
		// Tie on score: soonest arrival first
		return a.Candidate.ArrivalDate.Before(b.Candidate.ArrivalDate)
	})

	assignRanks(result.Ranked)
	return result
}

// assignRanks applies competition ranking over (rounded score, arrival)
func assignRanks(ranked []RankedCandidate) {
	for i := range ranked {
		if i == 0 {
			ranked[i].Rank = 1
			continue
		}
		prev, cur := &ranked[i-1], &ranked[i]
		if roundScore(prev.Score) == roundScore(cur.Score) &&
			prev.Candidate.ArrivalDate.Equal(cur.Candidate.ArrivalDate) {
			cur.Rank = prev.Rank
		} else {
			cur.Rank = i + 1
		}
	}
}

func roundScore(s float64) float64 {
	p := math.Pow10(scorePrecision)
	return math.Round(s*p) / p
}
