package matching

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

// Name similarity thresholds for the match ladder
const (
	exactNameThreshold  = 0.95
	strongNameThreshold = 0.90
	fuzzyNameThreshold  = 0.85

	unmappedSampleSize = 20
)

// Confidence tier labels used in MappingStats
const (
	TierPerfect = "perfect"
	TierHigh    = "high"
	TierMedium  = "medium"
	TierLow     = "low"
)

// MappingStats summarizes a mapping build
type MappingStats struct {
	TotalSleeperPlayers  int              `json:"total_sleeper_players"`
	ActiveSleeperPlayers int              `json:"active_sleeper_players"`
	TotalFFNerdPlayers   int              `json:"total_ffnerd_players"`
	MappedCount          int              `json:"mapped_count"`
	UnmappedSleeper      int              `json:"unmapped_sleeper_count"`
	UnmappedFFNerd       int              `json:"unmapped_ffnerd_count"`
	ConfidenceTiers      map[string]int   `json:"confidence_tiers"`
	UnmappedSample       []UnmappedPlayer `json:"unmapped_sample,omitempty"`
	BuiltAt              time.Time        `json:"built_at"`
}

// UnmappedPlayer is an eligible Sleeper player with no FFNerd counterpart
type UnmappedPlayer struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Position string `json:"position,omitempty"`
}

// IdentityMatcher reconciles Sleeper player ids with FFNerd player ids
type IdentityMatcher struct {
	mu        sync.RWMutex
	forward   map[string]models.MappingEntry
	reverse   map[int]string
	lastStats *MappingStats

	teams    *TeamAliasResolver
	strategy AssignmentStrategy
	logger   *logrus.Logger
}

// NewIdentityMatcher creates an empty matcher. A nil strategy selects GreedyAssignment.
func NewIdentityMatcher(logger *logrus.Logger, strategy AssignmentStrategy) *IdentityMatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if strategy == nil {
		strategy = GreedyAssignment{}
	}
	return &IdentityMatcher{
		forward:  make(map[string]models.MappingEntry),
		reverse:  make(map[int]string),
		teams:    NewTeamAliasResolver(),
		strategy: strategy,
		logger:   logger,
	}
}

// MatchPlayer decides whether two directory entries describe the same player.
// Rules are tried in order and the first one satisfied wins.
func (m *IdentityMatcher) MatchPlayer(sleeper models.SleeperPlayer, ffnerd models.FFNerdPlayer) (bool, float64) {
	similarity := Similarity(NormalizeName(sleeper.DisplayName()), NormalizeName(ffnerd.Name))

	sleeperTeam := strings.ToUpper(strings.TrimSpace(sleeper.Team))
	ffnerdTeam := strings.ToUpper(strings.TrimSpace(ffnerd.Team))
	teamsEqual := sleeperTeam == ffnerdTeam
	eitherTeamEmpty := sleeperTeam == "" || ffnerdTeam == ""
	aliasEqual := m.teams.Equal(sleeperTeam, ffnerdTeam)

	sleeperPos := strings.ToUpper(strings.TrimSpace(sleeper.Position))
	samePosition := sleeperPos != "" && sleeperPos == strings.ToUpper(strings.TrimSpace(ffnerd.Position))

	switch {
	case similarity >= exactNameThreshold && aliasEqual && samePosition:
		return true, 1.0
	case similarity >= strongNameThreshold && samePosition && (teamsEqual || eitherTeamEmpty):
		return true, 0.95
	case similarity >= fuzzyNameThreshold && samePosition && (teamsEqual || eitherTeamEmpty || aliasEqual):
		return true, 0.85
	case sleeperPos == models.PositionDEF && samePosition && aliasEqual:
		return true, 1.0
	}
	return false, 0.0
}

// BuildMapping replaces the current mapping with one built from full directories.
// Only Active and Injured Reserve Sleeper players are considered; entries without
// a name are skipped.
func (m *IdentityMatcher) BuildMapping(sleeperDirectory map[string]models.SleeperPlayer, ffnerdDirectory []models.FFNerdPlayer) MappingStats {
	start := time.Now()

	ids := make([]string, 0, len(sleeperDirectory))
	for id := range sleeperDirectory {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := MappingStats{
		TotalSleeperPlayers: len(sleeperDirectory),
		TotalFFNerdPlayers:  len(ffnerdDirectory),
		ConfidenceTiers:     newTierHistogram(),
	}

	eligible := make([]models.SleeperPlayer, 0, len(ids))
	for _, id := range ids {
		p := sleeperDirectory[id]
		if !p.IsMappable() {
			continue
		}
		stats.ActiveSleeperPlayers++
		if p.DisplayName() == "" {
			continue
		}
		if p.PlayerID == "" {
			p.PlayerID = id
		}
		eligible = append(eligible, p)
	}

	candidates := make([]models.FFNerdPlayer, 0, len(ffnerdDirectory))
	for _, p := range ffnerdDirectory {
		if strings.TrimSpace(p.Name) == "" || p.PlayerID <= 0 {
			continue
		}
		candidates = append(candidates, p)
	}

	assignments := m.strategy.Assign(eligible, candidates, m.MatchPlayer)

	forward := make(map[string]models.MappingEntry, len(assignments))
	reverse := make(map[int]string, len(assignments))
	for _, a := range assignments {
		if _, taken := reverse[a.FFNerdID]; taken {
			m.logger.WithFields(logrus.Fields{
				"component":  "identity_matcher",
				"ffnerd_id":  a.FFNerdID,
				"sleeper_id": a.SleeperID,
			}).Warn("Assignment strategy reused an FFNerd player, keeping first assignment")
			continue
		}
		forward[a.SleeperID] = models.MappingEntry{FFNerdID: a.FFNerdID, Confidence: a.Confidence}
		reverse[a.FFNerdID] = a.SleeperID
		stats.ConfidenceTiers[tierFor(a.Confidence)]++
	}

	stats.MappedCount = len(forward)
	stats.UnmappedSleeper = len(eligible) - len(forward)
	stats.UnmappedFFNerd = len(candidates) - len(reverse)
	for _, p := range eligible {
		if len(stats.UnmappedSample) >= unmappedSampleSize {
			break
		}
		if _, ok := forward[p.PlayerID]; ok {
			continue
		}
		stats.UnmappedSample = append(stats.UnmappedSample, UnmappedPlayer{
			PlayerID: p.PlayerID,
			Name:     p.DisplayName(),
			Team:     p.Team,
			Position: p.Position,
		})
	}
	stats.BuiltAt = time.Now().UTC()

	m.mu.Lock()
	m.forward = forward
	m.reverse = reverse
	m.lastStats = &stats
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"component":      "identity_matcher",
		"sleeper_total":  stats.TotalSleeperPlayers,
		"sleeper_active": stats.ActiveSleeperPlayers,
		"ffnerd_total":   stats.TotalFFNerdPlayers,
		"mapped":         stats.MappedCount,
		"unmapped":       stats.UnmappedSleeper,
		"duration":       time.Since(start).String(),
	}).Info("Built player identity mapping")

	return stats
}

// AddManualOverride maps a Sleeper player to an FFNerd player, replacing any
// existing mapping for either side.
func (m *IdentityMatcher) AddManualOverride(sleeperID string, ffnerdID int, confidence float64) {
	confidence = clamp(confidence)

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.forward[sleeperID]; ok {
		delete(m.reverse, prev.FFNerdID)
	}
	if other, ok := m.reverse[ffnerdID]; ok && other != sleeperID {
		delete(m.forward, other)
	}
	m.forward[sleeperID] = models.MappingEntry{FFNerdID: ffnerdID, Confidence: confidence}
	m.reverse[ffnerdID] = sleeperID
	m.lastStats = nil

	m.logger.WithFields(logrus.Fields{
		"component":  "identity_matcher",
		"sleeper_id": sleeperID,
		"ffnerd_id":  ffnerdID,
		"confidence": confidence,
	}).Info("Added manual mapping override")
}

// GetFFNerdID returns the FFNerd id mapped to a Sleeper id
func (m *IdentityMatcher) GetFFNerdID(sleeperID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.forward[sleeperID]
	return entry.FFNerdID, ok
}

// GetSleeperID returns the Sleeper id mapped to an FFNerd id
func (m *IdentityMatcher) GetSleeperID(ffnerdID int) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.reverse[ffnerdID]
	return id, ok
}

// GetConfidence returns the match confidence recorded for a Sleeper id
func (m *IdentityMatcher) GetConfidence(sleeperID string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.forward[sleeperID]
	return entry.Confidence, ok
}

// Len returns the number of mapped players
func (m *IdentityMatcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.forward)
}

// Entries returns a copy of the Sleeper -> FFNerd mapping
func (m *IdentityMatcher) Entries() map[string]models.MappingEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.MappingEntry, len(m.forward))
	for k, v := range m.forward {
		out[k] = v
	}
	return out
}

// Stats returns the stats of the last build. When the mapping was loaded from
// disk or edited since, only the mapped count and tier histogram are filled in.
func (m *IdentityMatcher) Stats() MappingStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastStats != nil {
		return *m.lastStats
	}
	stats := MappingStats{
		MappedCount:     len(m.forward),
		ConfidenceTiers: newTierHistogram(),
	}
	for _, entry := range m.forward {
		stats.ConfidenceTiers[tierFor(entry.Confidence)]++
	}
	return stats
}

// LoadEntries replaces the in-memory mapping with entries and returns how many
// were kept. Entries that reuse an FFNerd id are dropped.
func (m *IdentityMatcher) LoadEntries(entries map[string]models.MappingEntry) int {
	return m.replace(entries)
}

// replace installs entries keeping the mapping one-to-one. When two Sleeper ids
// claim the same FFNerd id the higher confidence wins, then the lower Sleeper id.
func (m *IdentityMatcher) replace(entries map[string]models.MappingEntry) int {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	forward := make(map[string]models.MappingEntry, len(entries))
	reverse := make(map[int]string, len(entries))
	for _, sleeperID := range ids {
		entry := entries[sleeperID]
		entry.Confidence = clamp(entry.Confidence)
		if other, taken := reverse[entry.FFNerdID]; taken {
			if entry.Confidence <= forward[other].Confidence {
				m.logDuplicate(entry.FFNerdID, other, sleeperID)
				continue
			}
			delete(forward, other)
			m.logDuplicate(entry.FFNerdID, sleeperID, other)
		}
		forward[sleeperID] = entry
		reverse[entry.FFNerdID] = sleeperID
	}

	m.mu.Lock()
	m.forward = forward
	m.reverse = reverse
	m.lastStats = nil
	m.mu.Unlock()
	return len(forward)
}

func (m *IdentityMatcher) logDuplicate(ffnerdID int, kept, dropped string) {
	m.logger.WithFields(logrus.Fields{
		"component":  "identity_matcher",
		"ffnerd_id":  ffnerdID,
		"sleeper_id": kept,
		"dropped_id": dropped,
	}).Warn("Mapping reuses an FFNerd player, dropping duplicate entry")
}

func newTierHistogram() map[string]int {
	return map[string]int{TierPerfect: 0, TierHigh: 0, TierMedium: 0, TierLow: 0}
}

func tierFor(confidence float64) string {
	switch {
	case confidence >= 1.0:
		return TierPerfect
	case confidence >= 0.95:
		return TierHigh
	case confidence >= 0.85:
		return TierMedium
	default:
		return TierLow
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
