package cache

import (
	"strconv"
	"strings"
	"time"
)

// Category is a class of cached data with its own TTL policy
type Category int

const (
	CategoryMapping Category = iota + 1
	CategoryProjections
	CategoryInjuries
	CategoryNews
	CategoryRankings
	CategoryEnrichment
)

// DefaultScoring is used when a key is built without a scoring format
const DefaultScoring = "ppr"

// Categories lists every category in key-grammar order
func Categories() []Category {
	return []Category{
		CategoryMapping,
		CategoryProjections,
		CategoryInjuries,
		CategoryNews,
		CategoryRankings,
		CategoryEnrichment,
	}
}

func (c Category) String() string {
	switch c {
	case CategoryMapping:
		return "player_mapping"
	case CategoryProjections:
		return "projections"
	case CategoryInjuries:
		return "injuries"
	case CategoryNews:
		return "news"
	case CategoryRankings:
		return "rankings"
	case CategoryEnrichment:
		return "enrichment"
	default:
		return "unknown"
	}
}

// DefaultTTL returns the expiration applied when a caller does not pass one
func (c Category) DefaultTTL() time.Duration {
	switch c {
	case CategoryMapping:
		return 24 * time.Hour
	case CategoryProjections:
		return 2 * time.Hour
	case CategoryInjuries:
		return 1 * time.Hour
	case CategoryNews:
		return 30 * time.Minute
	case CategoryRankings:
		return 2 * time.Hour
	case CategoryEnrichment:
		return 1 * time.Hour
	default:
		return 1 * time.Hour
	}
}

// ParseCategory resolves a category from its key segment
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Key identifies one cache entry. The set of implementations is closed: each
// category has exactly one key type.
type Key interface {
	Category() Category
	parts() []string
}

// MappingKey addresses the Sleeper -> FFNerd identity mapping
type MappingKey struct{}

func (MappingKey) Category() Category { return CategoryMapping }
func (MappingKey) parts() []string    { return nil }

// ProjectionsKey addresses weekly projections for one scoring format
type ProjectionsKey struct {
	Week    int
	Scoring string
}

func (ProjectionsKey) Category() Category { return CategoryProjections }
func (k ProjectionsKey) parts() []string {
	return []string{strconv.Itoa(k.Week), scoringOrDefault(k.Scoring)}
}

// InjuriesKey addresses the injury report for a week, 0 meaning the current week
type InjuriesKey struct {
	Week int
}

func (InjuriesKey) Category() Category { return CategoryInjuries }
func (k InjuriesKey) parts() []string {
	if k.Week <= 0 {
		return []string{"current"}
	}
	return []string{strconv.Itoa(k.Week)}
}

// NewsKey addresses recent news, optionally filtered to one team
type NewsKey struct {
	Team string
}

func (NewsKey) Category() Category { return CategoryNews }
func (k NewsKey) parts() []string {
	if team := strings.TrimSpace(k.Team); team != "" {
		return []string{team}
	}
	return nil
}

// RankingsKey addresses rankings for a week (0 = season-long), scoring format
// and optional position filter
type RankingsKey struct {
	Week     int
	Scoring  string
	Position string
}

func (RankingsKey) Category() Category { return CategoryRankings }
func (k RankingsKey) parts() []string {
	period := "season"
	if k.Week > 0 {
		period = strconv.Itoa(k.Week)
	}
	parts := []string{period, scoringOrDefault(k.Scoring)}
	if pos := strings.TrimSpace(k.Position); pos != "" {
		parts = append(parts, pos)
	}
	return parts
}

// EnrichmentKey addresses the composite enrichment record of one FFNerd player
type EnrichmentKey struct {
	FFNerdID int
}

func (EnrichmentKey) Category() Category { return CategoryEnrichment }
func (k EnrichmentKey) parts() []string   { return []string{strconv.Itoa(k.FFNerdID)} }

// BuildKey renders "<namespace>:<category>[:p1[:p2...]]", lower-cased
func BuildKey(namespace string, k Key) string {
	elements := make([]string, 0, 2+len(k.parts()))
	elements = append(elements, namespace, k.Category().String())
	elements = append(elements, k.parts()...)
	return strings.ToLower(strings.Join(elements, ":"))
}

func scoringOrDefault(scoring string) string {
	if s := strings.TrimSpace(scoring); s != "" {
		return s
	}
	return DefaultScoring
}
