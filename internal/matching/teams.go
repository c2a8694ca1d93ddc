package matching

import "strings"

// teamAliases maps every provider-specific or historical abbreviation to one
// canonical code. Sleeper and FFNerd disagree on JAX/JAC, LAR/LA and WAS/WSH.
var teamAliases = map[string]string{
	"JAC": "JAX",
	"LA":  "LAR",
	"WSH": "WAS",
	"OAK": "LV",
	"LVR": "LV",
	"SD":  "LAC",
	"STL": "LAR",
	"ARZ": "ARI",
	"BLT": "BAL",
	"CLV": "CLE",
	"HST": "HOU",
	"GBP": "GB",
	"KCC": "KC",
	"NOS": "NO",
	"NEP": "NE",
	"SFO": "SF",
	"TBB": "TB",
}

// TeamAliasResolver canonicalizes team abbreviations across providers
type TeamAliasResolver struct {
	aliases map[string]string
}

// NewTeamAliasResolver returns a resolver over the built-in alias table
func NewTeamAliasResolver() *TeamAliasResolver {
	return &TeamAliasResolver{aliases: teamAliases}
}

// Normalize upper-cases the abbreviation and maps known aliases to their canonical code.
// Unknown codes are returned upper-cased; empty input stays empty.
func (r *TeamAliasResolver) Normalize(team string) string {
	team = strings.ToUpper(strings.TrimSpace(team))
	if team == "" {
		return ""
	}
	if canonical, ok := r.aliases[team]; ok {
		return canonical
	}
	return team
}

// Equal reports whether two abbreviations normalize to the same code.
// Two empty teams are equal.
func (r *TeamAliasResolver) Equal(a, b string) bool {
	return r.Normalize(a) == r.Normalize(b)
}
