package matching

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

func TestSaveAndLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "player_mapping.json")

	m := newTestMatcher()
	m.AddManualOverride("1", 501, 1.0)
	m.AddManualOverride("2", 502, 0.85)
	require.NoError(t, m.SaveMapping(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk map[string]map[string]float64
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, 501.0, onDisk["1"]["ffnerd_id"])
	assert.Equal(t, 0.85, onDisk["2"]["confidence"])

	loaded := newTestMatcher()
	require.NoError(t, loaded.LoadMapping(path))

	assert.Equal(t, 2, loaded.Len())
	id, ok := loaded.GetFFNerdID("2")
	require.True(t, ok)
	assert.Equal(t, 502, id)
	sleeperID, ok := loaded.GetSleeperID(501)
	require.True(t, ok)
	assert.Equal(t, "1", sleeperID)

	stats := loaded.Stats()
	assert.Equal(t, 2, stats.MappedCount)
	assert.Equal(t, 1, stats.ConfidenceTiers[TierPerfect])
	assert.Equal(t, 1, stats.ConfidenceTiers[TierMedium])
}

func TestLoadMapping_MissingFileIsNoop(t *testing.T) {
	m := newTestMatcher()
	m.AddManualOverride("1", 501, 1.0)

	err := m.LoadMapping(filepath.Join(t.TempDir(), "does-not-exist.json"))

	assert.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestLoadMapping_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m := newTestMatcher()
	err := m.LoadMapping(path)

	assert.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestLoadMapping_ReplacesExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player_mapping.json")
	data, err := json.Marshal(map[string]models.MappingEntry{"9": {FFNerdID: 909, Confidence: 0.95}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m := newTestMatcher()
	m.AddManualOverride("1", 501, 1.0)
	require.NoError(t, m.LoadMapping(path))

	_, ok := m.GetFFNerdID("1")
	assert.False(t, ok)
	id, ok := m.GetFFNerdID("9")
	require.True(t, ok)
	assert.Equal(t, 909, id)
}

func TestLoadMapping_DropsDuplicateFFNerdIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player_mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"20": {"ffnerd_id": 501, "confidence": 0.85},
		"10": {"ffnerd_id": 501, "confidence": 0.85},
		"30": {"ffnerd_id": 777, "confidence": 0.85},
		"40": {"ffnerd_id": 777, "confidence": 1.0}
	}`), 0o644))

	m := newTestMatcher()
	require.NoError(t, m.LoadMapping(path))

	assert.Equal(t, 2, m.Len())

	sleeperID, ok := m.GetSleeperID(501)
	require.True(t, ok)
	assert.Equal(t, "10", sleeperID, "equal confidence keeps the lower Sleeper id")
	_, ok = m.GetFFNerdID("20")
	assert.False(t, ok)

	sleeperID, ok = m.GetSleeperID(777)
	require.True(t, ok)
	assert.Equal(t, "40", sleeperID, "higher confidence wins")
	_, ok = m.GetFFNerdID("30")
	assert.False(t, ok)

	for id, entry := range m.Entries() {
		back, ok := m.GetSleeperID(entry.FFNerdID)
		require.True(t, ok)
		assert.Equal(t, id, back)
	}
}

func TestLoadEntries(t *testing.T) {
	m := newTestMatcher()
	m.AddManualOverride("1", 501, 1.0)

	kept := m.LoadEntries(map[string]models.MappingEntry{
		"7": {FFNerdID: 707, Confidence: 0.95},
		"8": {FFNerdID: 707, Confidence: 0.9},
	})

	assert.Equal(t, 1, kept)
	_, ok := m.GetFFNerdID("1")
	assert.False(t, ok)
	id, ok := m.GetFFNerdID("7")
	require.True(t, ok)
	assert.Equal(t, 707, id)
}
