package models

import "strings"

// Sleeper roster statuses the matcher cares about
const (
	StatusActive         = "Active"
	StatusInjuredReserve = "Injured Reserve"
	StatusInactive       = "Inactive"
)

// Positions shared by both providers
const (
	PositionQB  = "QB"
	PositionRB  = "RB"
	PositionWR  = "WR"
	PositionTE  = "TE"
	PositionK   = "K"
	PositionDEF = "DEF"
)

// SleeperPlayer is a single entry of the Sleeper NFL player directory
type SleeperPlayer struct {
	PlayerID         string   `json:"player_id"`
	FullName         string   `json:"full_name,omitempty"`
	FirstName        string   `json:"first_name,omitempty"`
	LastName         string   `json:"last_name,omitempty"`
	Team             string   `json:"team,omitempty"`
	Position         string   `json:"position,omitempty"`
	Status           string   `json:"status,omitempty"`
	FantasyPositions []string `json:"fantasy_positions,omitempty"`
	InjuryStatus     string   `json:"injury_status,omitempty"`
	Age              int      `json:"age,omitempty"`
	YearsExp         int      `json:"years_exp,omitempty"`
	Active           bool     `json:"active"`
}

// DisplayName returns the full name, falling back to first + last name.
// Sleeper team defenses only carry first/last name.
func (p SleeperPlayer) DisplayName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// IsMappable reports whether the player's roster status makes it eligible for identity mapping
func (p SleeperPlayer) IsMappable() bool {
	switch strings.ToLower(strings.TrimSpace(p.Status)) {
	case "active", "injured reserve", "ir":
		return true
	default:
		return false
	}
}

// Clone returns a deep copy of the player
func (p SleeperPlayer) Clone() SleeperPlayer {
	out := p
	if p.FantasyPositions != nil {
		out.FantasyPositions = append([]string(nil), p.FantasyPositions...)
	}
	return out
}

// FFNerdPlayer is a single entry of the FantasyFootballNerd player directory
type FFNerdPlayer struct {
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	Position string `json:"position"`
}

// IsSkillPosition reports whether the position is QB, RB, WR or TE
func IsSkillPosition(position string) bool {
	switch strings.ToUpper(position) {
	case PositionQB, PositionRB, PositionWR, PositionTE:
		return true
	}
	return false
}

// IsSparsePosition reports whether the position is a kicker or team defense.
// Upstream data for these positions is thin.
func IsSparsePosition(position string) bool {
	switch strings.ToUpper(position) {
	case PositionK, PositionDEF:
		return true
	}
	return false
}
