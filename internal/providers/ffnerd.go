package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

// DefaultFFNerdBaseURL is the FantasyFootballNerd API host
const DefaultFFNerdBaseURL = "https://api.fantasynerds.com"

// FFNerdClient reads players, projections, injuries, news and rankings from
// FantasyFootballNerd.
type FFNerdClient struct {
	http   *httpClient
	apiKey string
	logger *logrus.Logger
}

// NewFFNerdClient creates a new FFNerd client. It fails with ErrMissingAPIKey
// when apiKey is empty so a misconfigured process stops at startup.
func NewFFNerdClient(apiKey, baseURL string, breakers *CircuitBreakerService, opts ClientOptions, logger *logrus.Logger) (*FFNerdClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = DefaultFFNerdBaseURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FFNerdClient{
		http:   newHTTPClient(ProviderFFNerd, baseURL, breakers, opts, logger),
		apiKey: apiKey,
		logger: logger,
	}, nil
}

// FFNerd API response structures. Numbers frequently arrive as strings.
type ffnerdPlayer struct {
	PlayerID flexInt `json:"playerId"`
	Name     string  `json:"name"`
	Team     string  `json:"team"`
	Position string  `json:"position"`
}

type ffnerdScheduleResponse struct {
	Season      flexInt `json:"season"`
	CurrentWeek flexInt `json:"current_week"`
}

type ffnerdProjectionsResponse struct {
	Week        flexInt                                 `json:"week"`
	Projections map[string][]map[string]json.RawMessage `json:"projections"`
}

type ffnerdInjury struct {
	PlayerID   flexInt `json:"playerId"`
	Name       string  `json:"name"`
	Position   string  `json:"position"`
	Injury     string  `json:"injury"`
	Notes      string  `json:"notes"`
	GameStatus string  `json:"game_status"`
	LastUpdate string  `json:"last_update"`
}

type ffnerdInjuriesResponse struct {
	Week  flexInt                   `json:"week"`
	Teams map[string][]ffnerdInjury `json:"teams"`
}

type ffnerdArticle struct {
	ArticleID string    `json:"article_id"`
	Date      string    `json:"article_date"`
	Headline  string    `json:"article_headline"`
	Excerpt   string    `json:"article_excerpt"`
	Link      string    `json:"article_link"`
	Author    string    `json:"article_author"`
	Players   []flexInt `json:"players"`
	Teams     []string  `json:"teams"`
}

type ffnerdRanking struct {
	PlayerID flexInt `json:"playerId"`
	Name     string  `json:"name"`
	Team     string  `json:"team"`
	Position string  `json:"position"`
	Rank     flexInt `json:"rank"`
}

type ffnerdRankingsResponse struct {
	Week    flexInt         `json:"week"`
	Players []ffnerdRanking `json:"players"`
}

func (c *FFNerdClient) query(extra map[string]string) url.Values {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	for k, v := range extra {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

// GetPlayers fetches the FFNerd player directory
func (c *FFNerdClient) GetPlayers(ctx context.Context) ([]models.FFNerdPlayer, error) {
	var raw []ffnerdPlayer
	if err := c.http.getJSON(ctx, "/v1/nfl/players", c.query(nil), &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch ffnerd players: %w", err)
	}

	players := make([]models.FFNerdPlayer, 0, len(raw))
	for _, p := range raw {
		players = append(players, models.FFNerdPlayer{
			PlayerID: int(p.PlayerID),
			Name:     p.Name,
			Team:     p.Team,
			Position: p.Position,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"component": "ffnerd_client",
		"players":   len(players),
	}).Info("Fetched FFNerd player directory")
	return players, nil
}

// GetCurrentWeek returns the current NFL week according to the schedule endpoint
func (c *FFNerdClient) GetCurrentWeek(ctx context.Context) (int, error) {
	var resp ffnerdScheduleResponse
	if err := c.http.getJSON(ctx, "/v1/nfl/schedule", c.query(nil), &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch ffnerd schedule: %w", err)
	}
	if resp.CurrentWeek <= 0 {
		return 0, fmt.Errorf("ffnerd schedule has no current week")
	}
	return int(resp.CurrentWeek), nil
}

// GetWeeklyProjections fetches projections for one week and scoring format
func (c *FFNerdClient) GetWeeklyProjections(ctx context.Context, week int, scoring string) ([]models.Projection, error) {
	scoring = normalizeScoring(scoring)
	var resp ffnerdProjectionsResponse
	q := c.query(map[string]string{"week": strconv.Itoa(week), "format": scoring})
	if err := c.http.getJSON(ctx, "/v1/nfl/weekly-projections", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ffnerd projections: %w", err)
	}
	if resp.Week > 0 {
		week = int(resp.Week)
	}

	var projections []models.Projection
	for _, entries := range resp.Projections {
		for _, entry := range entries {
			p, ok := parseProjection(entry)
			if !ok {
				continue
			}
			p.Week = week
			p.Scoring = scoring
			projections = append(projections, p)
		}
	}
	sort.Slice(projections, func(i, j int) bool { return projections[i].FFNerdID < projections[j].FFNerdID })
	return projections, nil
}

// GetInjuries fetches injury reports. week 0 asks for the current week.
func (c *FFNerdClient) GetInjuries(ctx context.Context, week int) ([]models.Injury, error) {
	extra := map[string]string{}
	if week > 0 {
		extra["week"] = strconv.Itoa(week)
	}
	var resp ffnerdInjuriesResponse
	if err := c.http.getJSON(ctx, "/v1/nfl/injuries", c.query(extra), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ffnerd injuries: %w", err)
	}

	var injuries []models.Injury
	for _, reports := range resp.Teams {
		for _, r := range reports {
			if r.PlayerID <= 0 {
				continue
			}
			injuries = append(injuries, models.Injury{
				FFNerdID:    int(r.PlayerID),
				Status:      firstNonEmpty(r.Injury, r.GameStatus),
				Description: r.Notes,
				GameStatus:  r.GameStatus,
				LastUpdate:  parseTime(r.LastUpdate),
			})
		}
	}
	sort.Slice(injuries, func(i, j int) bool { return injuries[i].FFNerdID < injuries[j].FFNerdID })
	return injuries, nil
}

// GetNews fetches recent league news, newest first
func (c *FFNerdClient) GetNews(ctx context.Context) ([]models.NewsItem, error) {
	var raw []ffnerdArticle
	if err := c.http.getJSON(ctx, "/v1/nfl/news", c.query(nil), &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch ffnerd news: %w", err)
	}

	news := make([]models.NewsItem, 0, len(raw))
	for _, a := range raw {
		if strings.TrimSpace(a.Headline) == "" {
			continue
		}
		item := models.NewsItem{
			Headline:  strings.TrimSpace(a.Headline),
			Body:      a.Excerpt,
			Source:    a.Author,
			URL:       a.Link,
			Published: parseTime(a.Date),
		}
		if len(a.Teams) > 0 {
			item.Team = strings.ToUpper(a.Teams[0])
		}
		for _, id := range a.Players {
			if id > 0 {
				item.PlayerIDs = append(item.PlayerIDs, int(id))
			}
		}
		news = append(news, item)
	}
	sort.SliceStable(news, func(i, j int) bool { return news[i].Published.After(news[j].Published) })
	return news, nil
}

// GetWeeklyRankings fetches expert rankings. An empty position returns all positions.
func (c *FFNerdClient) GetWeeklyRankings(ctx context.Context, week int, scoring, position string) ([]models.Ranking, error) {
	scoring = normalizeScoring(scoring)
	position = strings.ToUpper(strings.TrimSpace(position))
	q := c.query(map[string]string{"week": strconv.Itoa(week), "format": scoring, "position": position})

	var resp ffnerdRankingsResponse
	if err := c.http.getJSON(ctx, "/v1/nfl/weekly-rankings", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch ffnerd rankings: %w", err)
	}
	if resp.Week > 0 {
		week = int(resp.Week)
	}

	players := resp.Players
	sort.SliceStable(players, func(i, j int) bool { return players[i].Rank < players[j].Rank })

	positionCounts := make(map[string]int)
	rankings := make([]models.Ranking, 0, len(players))
	for _, p := range players {
		if p.PlayerID <= 0 {
			continue
		}
		pos := strings.ToUpper(p.Position)
		positionCounts[pos]++
		rankings = append(rankings, models.Ranking{
			FFNerdID:     int(p.PlayerID),
			Week:         week,
			Scoring:      scoring,
			Position:     pos,
			Overall:      int(p.Rank),
			PositionRank: positionCounts[pos],
		})
	}
	return rankings, nil
}

var projectionIdentityFields = map[string]bool{
	"playerId": true, "name": true, "team": true, "position": true, "proj_pts": true,
}

func parseProjection(entry map[string]json.RawMessage) (models.Projection, bool) {
	var id flexInt
	if raw, ok := entry["playerId"]; !ok || json.Unmarshal(raw, &id) != nil || id <= 0 {
		return models.Projection{}, false
	}

	p := models.Projection{FFNerdID: int(id)}
	var points flexFloat
	if raw, ok := entry["proj_pts"]; ok && json.Unmarshal(raw, &points) == nil {
		p.ProjectedPoints = float64(points)
	}
	for field, raw := range entry {
		if projectionIdentityFields[field] {
			continue
		}
		var v flexFloat
		if json.Unmarshal(raw, &v) != nil {
			continue
		}
		if p.Stats == nil {
			p.Stats = make(map[string]float64)
		}
		p.Stats[field] = float64(v)
	}
	return p, true
}

func normalizeScoring(scoring string) string {
	scoring = strings.ToLower(strings.TrimSpace(scoring))
	if scoring == "" {
		return "ppr"
	}
	return scoring
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// flexInt accepts 12 and "12"
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", data, err)
	}
	*f = flexInt(n)
	return nil
}

// flexFloat accepts 1.5 and "1.5"
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", data, err)
	}
	*f = flexFloat(v)
	return nil
}
