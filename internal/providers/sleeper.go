package providers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

// DefaultSleeperBaseURL is the public Sleeper API host
const DefaultSleeperBaseURL = "https://api.sleeper.app"

// SleeperClient reads the Sleeper NFL player directory. The API is public and
// needs no credentials.
type SleeperClient struct {
	http   *httpClient
	logger *logrus.Logger
}

// NewSleeperClient creates a new Sleeper API client
func NewSleeperClient(baseURL string, breakers *CircuitBreakerService, opts ClientOptions, logger *logrus.Logger) *SleeperClient {
	if baseURL == "" {
		baseURL = DefaultSleeperBaseURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SleeperClient{
		http:   newHTTPClient(ProviderSleeper, baseURL, breakers, opts, logger),
		logger: logger,
	}
}

// GetAllPlayers fetches the full directory keyed by Sleeper player id. The
// payload is several megabytes, callers should cache the result.
func (c *SleeperClient) GetAllPlayers(ctx context.Context) (map[string]models.SleeperPlayer, error) {
	var players map[string]models.SleeperPlayer
	if err := c.http.getJSON(ctx, "/v1/players/nfl", nil, &players); err != nil {
		return nil, fmt.Errorf("failed to fetch sleeper players: %w", err)
	}

	for id, p := range players {
		if p.PlayerID == "" {
			p.PlayerID = id
			players[id] = p
		}
	}

	c.logger.WithFields(logrus.Fields{
		"component": "sleeper_client",
		"players":   len(players),
	}).Info("Fetched Sleeper player directory")
	return players, nil
}
