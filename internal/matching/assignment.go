package matching

import (
	"github.com/stitts-dev/player-enrichment/internal/models"
)

// MatchFunc decides whether a Sleeper player and an FFNerd player are the same person
type MatchFunc func(sleeper models.SleeperPlayer, ffnerd models.FFNerdPlayer) (bool, float64)

// Assignment pairs one Sleeper player with one FFNerd player
type Assignment struct {
	SleeperID  string
	FFNerdID   int
	Confidence float64
}

// AssignmentStrategy assigns each Sleeper player to at most one FFNerd player.
// Implementations must never hand the same FFNerd player to two Sleeper players.
type AssignmentStrategy interface {
	Assign(sleeper []models.SleeperPlayer, ffnerd []models.FFNerdPlayer, match MatchFunc) []Assignment
}

// GreedyAssignment walks Sleeper players in the given order and lets each one
// claim its best remaining FFNerd candidate. An earlier, weaker match can take
// the candidate a later player would have matched better; the coarse confidence
// tiers keep this rare in practice.
type GreedyAssignment struct{}

// Assign implements AssignmentStrategy
func (GreedyAssignment) Assign(sleeper []models.SleeperPlayer, ffnerd []models.FFNerdPlayer, match MatchFunc) []Assignment {
	buckets := make(map[string][]int, len(ffnerd))
	for i, p := range ffnerd {
		key := NormalizeName(p.Name)
		buckets[key] = append(buckets[key], i)
	}

	claimed := make([]bool, len(ffnerd))
	assignments := make([]Assignment, 0, len(sleeper))

	for _, sp := range sleeper {
		candidates := unclaimed(buckets[NormalizeName(sp.DisplayName())], claimed)
		if len(candidates) == 0 {
			// slow path: scan every FFNerd player not yet claimed
			candidates = make([]int, 0, len(ffnerd))
			for i := range ffnerd {
				if !claimed[i] {
					candidates = append(candidates, i)
				}
			}
		}

		best := -1
		bestConfidence := 0.0
		for _, idx := range candidates {
			ok, confidence := match(sp, ffnerd[idx])
			if !ok || confidence <= bestConfidence {
				continue
			}
			best = idx
			bestConfidence = confidence
			if confidence >= 1.0 {
				break
			}
		}

		if best < 0 {
			continue
		}
		claimed[best] = true
		assignments = append(assignments, Assignment{
			SleeperID:  sp.PlayerID,
			FFNerdID:   ffnerd[best].PlayerID,
			Confidence: bestConfidence,
		})
	}

	return assignments
}

func unclaimed(indexes []int, claimed []bool) []int {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]int, 0, len(indexes))
	for _, idx := range indexes {
		if !claimed[idx] {
			out = append(out, idx)
		}
	}
	return out
}
