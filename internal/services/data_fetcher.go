package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// mappingRebuildSchedule rebuilds the identity mapping nightly, after Sleeper's
// overnight roster updates
const mappingRebuildSchedule = "0 4 * * *"

// Refresher runs one ingestion pass
type Refresher interface {
	Refresh(ctx context.Context, opts RefreshOptions) (*RefreshResult, error)
}

// directorySizer is implemented by refreshers that keep the Sleeper directory
type directorySizer interface {
	DirectorySize() int
}

// DataFetcherService schedules ingestion refreshes
type DataFetcherService struct {
	refresher     Refresher
	logger        *logrus.Logger
	cron          *cron.Cron
	mu            sync.Mutex
	isRunning     bool
	fetchInterval time.Duration
	timeout       time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	jobs     sync.WaitGroup
	inFlight atomic.Bool

	statusMu    sync.Mutex
	lastResult  *RefreshResult
	lastError   string
	lastRunAt   time.Time
	runCount    int
	failedCount int
}

// NewDataFetcherService creates a new data fetcher service. timeout bounds a
// single refresh run.
func NewDataFetcherService(refresher Refresher, logger *logrus.Logger, fetchInterval, timeout time.Duration) *DataFetcherService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if fetchInterval <= 0 {
		fetchInterval = 2 * time.Hour
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DataFetcherService{
		refresher:     refresher,
		logger:        logger,
		cron:          cron.New(),
		fetchInterval: fetchInterval,
		timeout:       timeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins the scheduled refreshes and kicks off an initial one
func (s *DataFetcherService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("data fetcher is already running")
	}

	schedule := fmt.Sprintf("@every %s", s.fetchInterval.String())
	if _, err := s.cron.AddFunc(schedule, func() { s.run(RefreshOptions{}) }); err != nil {
		return fmt.Errorf("failed to schedule data fetcher: %w", err)
	}
	if _, err := s.cron.AddFunc(mappingRebuildSchedule, func() { s.run(RefreshOptions{RebuildMapping: true}) }); err != nil {
		return fmt.Errorf("failed to schedule mapping rebuild: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.run(RefreshOptions{})
	}()

	s.logger.WithFields(logrus.Fields{
		"component": "data_fetcher",
		"interval":  s.fetchInterval.String(),
	}).Info("Data fetcher service started")
	return nil
}

// Stop halts the schedule, cancels in-flight refreshes and waits for them
func (s *DataFetcherService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.jobs.Wait()

	s.isRunning = false
	s.logger.WithField("component", "data_fetcher").Info("Data fetcher service stopped")
}

// FetchOnDemand triggers a refresh in the background. It returns
// ErrRefreshInProgress when a run started by this fetcher is still going.
func (s *DataFetcherService) FetchOnDemand(rebuildMapping bool) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer s.inFlight.Store(false)
		s.refresh(RefreshOptions{RebuildMapping: rebuildMapping})
	}()
	return nil
}

// RunNow performs a refresh synchronously
func (s *DataFetcherService) RunNow(ctx context.Context, opts RefreshOptions) (*RefreshResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	result, err := s.refresher.Refresh(ctx, opts)
	s.record(result, err)
	return result, err
}

func (s *DataFetcherService) run(opts RefreshOptions) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.WithField("component", "data_fetcher").Info("Refresh already running, skipping")
		return
	}
	defer s.inFlight.Store(false)
	s.refresh(opts)
}

func (s *DataFetcherService) refresh(opts RefreshOptions) {
	logger := s.logger.WithFields(logrus.Fields{
		"component":       "data_fetcher",
		"rebuild_mapping": opts.RebuildMapping,
	})
	logger.Info("Starting scheduled data refresh")

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	result, err := s.refresher.Refresh(ctx, opts)
	if errors.Is(err, ErrRefreshInProgress) {
		logger.Info("Refresh already running, skipping")
		return
	}
	s.record(result, err)
	if err != nil {
		logger.WithError(err).Error("Scheduled data refresh failed")
		return
	}
	logger.Info("Completed scheduled data refresh")
}

func (s *DataFetcherService) record(result *RefreshResult, err error) {
	if errors.Is(err, ErrRefreshInProgress) {
		return
	}
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.runCount++
	s.lastRunAt = time.Now().UTC()
	if err != nil {
		s.failedCount++
		s.lastError = err.Error()
		return
	}
	s.lastError = ""
	s.lastResult = result
}

// GetFetchStatus returns the current status of the fetcher
func (s *DataFetcherService) GetFetchStatus() map[string]interface{} {
	s.mu.Lock()
	entries := s.cron.Entries()
	running := s.isRunning
	s.mu.Unlock()

	nextRuns := make([]time.Time, 0, len(entries))
	for _, entry := range entries {
		nextRuns = append(nextRuns, entry.Next)
	}

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	status := map[string]interface{}{
		"is_running":     running,
		"fetch_interval": s.fetchInterval.String(),
		"next_runs":      nextRuns,
		"cron_jobs":      len(entries),
		"runs":           s.runCount,
		"failed_runs":    s.failedCount,
		"refreshing":     s.inFlight.Load(),
	}
	if sizer, ok := s.refresher.(directorySizer); ok {
		status["directory_players"] = sizer.DirectorySize()
	}
	if !s.lastRunAt.IsZero() {
		status["last_run_at"] = s.lastRunAt
	}
	if s.lastError != "" {
		status["last_error"] = s.lastError
	}
	if s.lastResult != nil {
		status["last_result"] = s.lastResult
	}
	return status
}
