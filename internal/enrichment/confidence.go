package enrichment

import (
	"strings"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

// Completeness weights of the enrichment confidence score
const (
	projectionsWeight = 0.35
	injuryWeight      = 0.20
	newsWeight        = 0.15
	rankingsWeight    = 0.20
	resolvedIDWeight  = 0.10

	skillPositionBoost  = 1.1
	sparsePositionBoost = 1.2
)

// CalculateConfidence scores how complete an enrichment record is for a player.
// It is unrelated to the identity match confidence. The result is in [0, 1]
// and a nil record scores 0.
func CalculateConfidence(player models.SleeperPlayer, record *models.EnrichmentRecord) float64 {
	if record == nil {
		return 0
	}

	score := 0.0
	if record.Projections.HasValue() {
		score += projectionsWeight
	}
	if record.Injury != nil {
		score += injuryWeight
	}
	if len(record.News) > 0 {
		score += newsWeight
	}
	if record.Rankings != nil && record.Rankings.Overall > 0 {
		score += rankingsWeight
	}
	if record.FFNerdID > 0 {
		score += resolvedIDWeight
	}

	// K and DEF get a larger boost since FFNerd publishes less for them
	position := strings.ToUpper(strings.TrimSpace(player.Position))
	switch {
	case models.IsSparsePosition(position):
		score *= sparsePositionBoost
	case models.IsSkillPosition(position):
		score *= skillPositionBoost
	}

	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
