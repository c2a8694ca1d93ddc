package models

import "time"

// Projection is a weekly fantasy projection for one player and scoring format
type Projection struct {
	FFNerdID        int                `json:"ffnerd_id"`
	Week            int                `json:"week"`
	Scoring         string             `json:"scoring"`
	ProjectedPoints float64            `json:"projected_points"`
	Stats           map[string]float64 `json:"stats,omitempty"`
}

// HasValue reports whether the projection carries anything beyond zeros
func (p *Projection) HasValue() bool {
	if p == nil {
		return false
	}
	if p.ProjectedPoints > 0 {
		return true
	}
	for _, v := range p.Stats {
		if v != 0 {
			return true
		}
	}
	return false
}

// Injury is the latest injury report for a player
type Injury struct {
	FFNerdID    int       `json:"ffnerd_id"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	GameStatus  string    `json:"game_status,omitempty"`
	LastUpdate  time.Time `json:"last_update"`
}

// NewsItem is a single news article
type NewsItem struct {
	Headline  string    `json:"headline"`
	Body      string    `json:"body,omitempty"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	Team      string    `json:"team,omitempty"`
	PlayerIDs []int     `json:"player_ids,omitempty"`
	Published time.Time `json:"published"`
}

// Ranking is an expert consensus ranking for a player
type Ranking struct {
	FFNerdID     int    `json:"ffnerd_id"`
	Week         int    `json:"week"` // 0 = season-long
	Scoring      string `json:"scoring"`
	Position     string `json:"position,omitempty"`
	Overall      int    `json:"overall"`
	PositionRank int    `json:"position_rank,omitempty"`
}

// EnrichmentRecord is the composite per-player block built by ingestion
type EnrichmentRecord struct {
	FFNerdID    int         `json:"ffnerd_id"`
	Projections *Projection `json:"projections,omitempty"`
	Injury      *Injury     `json:"injury,omitempty"`
	News        []NewsItem  `json:"news,omitempty"`
	Rankings    *Ranking    `json:"rankings,omitempty"`
	Confidence  float64     `json:"confidence"`
	CachedAt    time.Time   `json:"cached_at"`
}

// EnrichedPlayer is a Sleeper player with FFNerd data attached
type EnrichedPlayer struct {
	SleeperPlayer
	FFNerdData           *EnrichmentRecord `json:"ffnerd_data,omitempty"`
	EnrichmentConfidence float64           `json:"enrichment_confidence,omitempty"`
	EnrichedAt           *time.Time        `json:"enriched_at,omitempty"`
}

// IsEnriched reports whether enrichment data was attached
func (p EnrichedPlayer) IsEnriched() bool {
	return p.FFNerdData != nil
}

// MappingEntry is one side of the Sleeper -> FFNerd identity mapping
type MappingEntry struct {
	FFNerdID   int     `json:"ffnerd_id"`
	Confidence float64 `json:"confidence"`
}
