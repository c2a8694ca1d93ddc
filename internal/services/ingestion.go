package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/cache"
	"github.com/stitts-dev/player-enrichment/internal/matching"
	"github.com/stitts-dev/player-enrichment/internal/models"
	"github.com/stitts-dev/player-enrichment/pkg/utils"
)

// maxNewsPerPlayer caps the news list of a composite record
const maxNewsPerPlayer = 10

// ErrRefreshInProgress is returned when a refresh is requested while one is running
var ErrRefreshInProgress = fmt.Errorf("%w: refresh already in progress", utils.ErrConflict)

// SleeperSource lists the Sleeper player directory
type SleeperSource interface {
	GetAllPlayers(ctx context.Context) (map[string]models.SleeperPlayer, error)
}

// FFNerdSource lists FFNerd players and per-category datasets
type FFNerdSource interface {
	GetPlayers(ctx context.Context) ([]models.FFNerdPlayer, error)
	GetCurrentWeek(ctx context.Context) (int, error)
	GetWeeklyProjections(ctx context.Context, week int, scoring string) ([]models.Projection, error)
	GetInjuries(ctx context.Context, week int) ([]models.Injury, error)
	GetNews(ctx context.Context) ([]models.NewsItem, error)
	GetWeeklyRankings(ctx context.Context, week int, scoring, position string) ([]models.Ranking, error)
}

// IngestionConfig holds the refresh parameters
type IngestionConfig struct {
	MappingFilePath string
	Scoring         string
	// Week pins the NFL week; 0 asks FFNerd for the current week
	Week int
}

// RefreshOptions controls a single refresh run
type RefreshOptions struct {
	RebuildMapping bool
}

// RefreshResult summarizes a refresh run
type RefreshResult struct {
	Week           int                    `json:"week"`
	Scoring        string                 `json:"scoring"`
	SleeperPlayers int                    `json:"sleeper_players"`
	Mapping        *matching.MappingStats `json:"mapping,omitempty"`
	Projections    int                    `json:"projections"`
	Injuries       int                    `json:"injuries"`
	News           int                    `json:"news"`
	Rankings       int                    `json:"rankings"`
	Records        int                    `json:"records"`
	Errors         []string               `json:"errors,omitempty"`
	StartedAt      time.Time              `json:"started_at"`
	Duration       string                 `json:"duration"`
}

// IngestionService pulls provider data into the enrichment cache and keeps
// the latest Sleeper directory in memory.
type IngestionService struct {
	sleeper SleeperSource
	ffnerd  FFNerdSource
	matcher *matching.IdentityMatcher
	cache   *cache.EnrichmentCache
	config  IngestionConfig
	logger  *logrus.Logger

	refreshMu sync.Mutex

	mu          sync.RWMutex
	directory   map[string]models.SleeperPlayer
	week        int
	lastRefresh *RefreshResult
}

func NewIngestionService(
	sleeper SleeperSource,
	ffnerd FFNerdSource,
	matcher *matching.IdentityMatcher,
	enrichmentCache *cache.EnrichmentCache,
	config IngestionConfig,
	logger *logrus.Logger,
) *IngestionService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	config.Scoring = strings.ToLower(strings.TrimSpace(config.Scoring))
	if config.Scoring == "" {
		config.Scoring = cache.DefaultScoring
	}
	return &IngestionService{
		sleeper:   sleeper,
		ffnerd:    ffnerd,
		matcher:   matcher,
		cache:     enrichmentCache,
		config:    config,
		logger:    logger,
		directory: make(map[string]models.SleeperPlayer),
	}
}

// Refresh runs one ingestion pass. Only one pass runs at a time; a concurrent
// call returns ErrRefreshInProgress.
func (s *IngestionService) Refresh(ctx context.Context, opts RefreshOptions) (*RefreshResult, error) {
	if !s.refreshMu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	start := time.Now()
	result := &RefreshResult{Scoring: s.config.Scoring, StartedAt: start.UTC()}
	logger := s.logger.WithField("component", "ingestion")

	directory, err := s.sleeper.GetAllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh sleeper directory: %w", err)
	}
	result.SleeperPlayers = len(directory)
	s.mu.Lock()
	s.directory = directory
	s.mu.Unlock()

	if opts.RebuildMapping || s.matcher.Len() == 0 {
		stats, err := s.rebuildMapping(ctx, directory)
		if err != nil {
			return nil, err
		}
		result.Mapping = stats
	}

	week, err := s.resolveWeek(ctx)
	if err != nil {
		return nil, err
	}
	result.Week = week

	data := newDatasets()
	fail := func(category string, err error) {
		logger.WithError(err).WithField("category", category).Warn("Failed to refresh dataset")
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", category, err))
	}

	if projections, err := s.ffnerd.GetWeeklyProjections(ctx, week, s.config.Scoring); err != nil {
		fail(cache.CategoryProjections.String(), err)
	} else {
		s.cache.StoreProjections(ctx, week, s.config.Scoring, projections, 0)
		data.addProjections(projections)
		result.Projections = len(projections)
	}

	if injuries, err := s.ffnerd.GetInjuries(ctx, 0); err != nil {
		fail(cache.CategoryInjuries.String(), err)
	} else {
		s.cache.StoreInjuries(ctx, 0, injuries, 0)
		data.addInjuries(injuries)
		result.Injuries = len(injuries)
	}

	if news, err := s.ffnerd.GetNews(ctx); err != nil {
		fail(cache.CategoryNews.String(), err)
	} else {
		s.cache.StoreNews(ctx, "", news, 0)
		for team, items := range groupNewsByTeam(news) {
			s.cache.StoreNews(ctx, team, items, 0)
		}
		data.addNews(news)
		result.News = len(news)
	}

	if rankings, err := s.ffnerd.GetWeeklyRankings(ctx, week, s.config.Scoring, ""); err != nil {
		fail(cache.CategoryRankings.String(), err)
	} else {
		s.cache.StoreRankings(ctx, week, s.config.Scoring, "", rankings, 0)
		data.addRankings(rankings)
		result.Rankings = len(rankings)
	}

	now := time.Now().UTC()
	for _, entry := range s.matcher.Entries() {
		record := data.compose(entry.FFNerdID, now)
		if record == nil {
			continue
		}
		if s.cache.StoreEnrichment(ctx, entry.FFNerdID, record, 0) {
			result.Records++
		}
	}

	result.Duration = time.Since(start).String()
	s.mu.Lock()
	s.week = week
	s.lastRefresh = result
	s.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"week":        week,
		"scoring":     s.config.Scoring,
		"projections": result.Projections,
		"injuries":    result.Injuries,
		"news":        result.News,
		"rankings":    result.Rankings,
		"records":     result.Records,
		"errors":      len(result.Errors),
		"duration":    result.Duration,
	}).Info("Ingestion refresh completed")

	return result, nil
}

func (s *IngestionService) rebuildMapping(ctx context.Context, directory map[string]models.SleeperPlayer) (*matching.MappingStats, error) {
	ffnerdPlayers, err := s.ffnerd.GetPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ffnerd directory: %w", err)
	}

	stats := s.matcher.BuildMapping(directory, ffnerdPlayers)
	if s.config.MappingFilePath != "" {
		if err := s.matcher.SaveMapping(s.config.MappingFilePath); err != nil {
			s.logger.WithError(err).WithField("component", "ingestion").Error("Failed to persist player mapping")
		}
	}
	s.cache.StoreMapping(ctx, s.matcher.Entries(), 0)
	return &stats, nil
}

func (s *IngestionService) resolveWeek(ctx context.Context) (int, error) {
	if s.config.Week > 0 {
		return s.config.Week, nil
	}
	week, err := s.ffnerd.GetCurrentWeek(ctx)
	if err != nil {
		s.mu.RLock()
		last := s.week
		s.mu.RUnlock()
		if last > 0 {
			s.logger.WithError(err).WithField("component", "ingestion").Warn("Using previous NFL week")
			return last, nil
		}
		return 0, fmt.Errorf("failed to resolve current week: %w", err)
	}
	return week, nil
}

// ComposeForPlayer builds a fresh composite record for one FFNerd player from
// the cached category datasets, fetching a dataset from FFNerd when its cache
// entry has expired. It returns nil when nothing is known about the player.
func (s *IngestionService) ComposeForPlayer(ctx context.Context, ffnerdID int) (*models.EnrichmentRecord, error) {
	week, err := s.currentWeek(ctx)
	if err != nil {
		return nil, err
	}
	scoring := s.config.Scoring
	data := newDatasets()

	projections, ok := s.cache.GetProjections(ctx, week, scoring)
	if !ok {
		if projections, err = s.ffnerd.GetWeeklyProjections(ctx, week, scoring); err != nil {
			return nil, err
		}
		s.cache.StoreProjections(ctx, week, scoring, projections, 0)
	}
	data.addProjections(projections)

	injuries, ok := s.cache.GetInjuries(ctx, 0)
	if !ok {
		if injuries, err = s.ffnerd.GetInjuries(ctx, 0); err != nil {
			return nil, err
		}
		s.cache.StoreInjuries(ctx, 0, injuries, 0)
	}
	data.addInjuries(injuries)

	news, ok := s.cache.GetNews(ctx, "")
	if !ok {
		if news, err = s.ffnerd.GetNews(ctx); err != nil {
			return nil, err
		}
		s.cache.StoreNews(ctx, "", news, 0)
	}
	data.addNews(news)

	rankings, ok := s.cache.GetRankings(ctx, week, scoring, "")
	if !ok {
		if rankings, err = s.ffnerd.GetWeeklyRankings(ctx, week, scoring, ""); err != nil {
			return nil, err
		}
		s.cache.StoreRankings(ctx, week, scoring, "", rankings, 0)
	}
	data.addRankings(rankings)

	return data.compose(ffnerdID, time.Now().UTC()), nil
}

func (s *IngestionService) currentWeek(ctx context.Context) (int, error) {
	s.mu.RLock()
	week := s.week
	s.mu.RUnlock()
	if week > 0 {
		return week, nil
	}
	return s.resolveWeek(ctx)
}

// Player returns a Sleeper player from the latest directory snapshot
func (s *IngestionService) Player(sleeperID string) (models.SleeperPlayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.directory[sleeperID]
	return p, ok
}

// SetDirectory replaces the in-memory Sleeper directory
func (s *IngestionService) SetDirectory(directory map[string]models.SleeperPlayer) {
	s.mu.Lock()
	s.directory = directory
	s.mu.Unlock()
}

// DirectorySize returns the number of Sleeper players held in memory
func (s *IngestionService) DirectorySize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.directory)
}

// LastRefresh returns the result of the last successful refresh, if any
func (s *IngestionService) LastRefresh() *RefreshResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// datasets indexes category data by FFNerd id for record composition
type datasets struct {
	projections map[int]models.Projection
	injuries    map[int]models.Injury
	news        map[int][]models.NewsItem
	rankings    map[int]models.Ranking
}

func newDatasets() *datasets {
	return &datasets{
		projections: make(map[int]models.Projection),
		injuries:    make(map[int]models.Injury),
		news:        make(map[int][]models.NewsItem),
		rankings:    make(map[int]models.Ranking),
	}
}

func (d *datasets) addProjections(projections []models.Projection) {
	for _, p := range projections {
		d.projections[p.FFNerdID] = p
	}
}

func (d *datasets) addInjuries(injuries []models.Injury) {
	for _, i := range injuries {
		if existing, ok := d.injuries[i.FFNerdID]; ok && existing.LastUpdate.After(i.LastUpdate) {
			continue
		}
		d.injuries[i.FFNerdID] = i
	}
}

func (d *datasets) addNews(news []models.NewsItem) {
	for _, item := range news {
		for _, id := range item.PlayerIDs {
			d.news[id] = append(d.news[id], item)
		}
	}
}

func (d *datasets) addRankings(rankings []models.Ranking) {
	for _, r := range rankings {
		if existing, ok := d.rankings[r.FFNerdID]; ok && existing.Overall > 0 && existing.Overall <= r.Overall {
			continue
		}
		d.rankings[r.FFNerdID] = r
	}
}

// compose returns nil when no dataset mentions the player
func (d *datasets) compose(ffnerdID int, now time.Time) *models.EnrichmentRecord {
	record := &models.EnrichmentRecord{FFNerdID: ffnerdID, CachedAt: now}
	found := false

	if p, ok := d.projections[ffnerdID]; ok {
		record.Projections = &p
		found = true
	}
	if i, ok := d.injuries[ffnerdID]; ok {
		record.Injury = &i
		found = true
	}
	if r, ok := d.rankings[ffnerdID]; ok {
		record.Rankings = &r
		found = true
	}
	if items := dedupeNews(d.news[ffnerdID], maxNewsPerPlayer); len(items) > 0 {
		record.News = items
		found = true
	}

	if !found {
		return nil
	}
	return record
}

// dedupeNews orders items newest first and keeps the first item per headline
func dedupeNews(items []models.NewsItem, limit int) []models.NewsItem {
	if len(items) == 0 {
		return nil
	}
	sorted := append([]models.NewsItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Published.After(sorted[j].Published) })

	seen := make(map[string]bool, len(sorted))
	out := make([]models.NewsItem, 0, len(sorted))
	for _, item := range sorted {
		key := strings.ToLower(strings.TrimSpace(item.Headline))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func groupNewsByTeam(news []models.NewsItem) map[string][]models.NewsItem {
	out := make(map[string][]models.NewsItem)
	for _, item := range news {
		if item.Team == "" {
			continue
		}
		out[item.Team] = append(out[item.Team], item)
	}
	return out
}
