package matching

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/player-enrichment/internal/models"
)

// SaveMapping writes the mapping as {"<sleeper_id>": {"ffnerd_id": n, "confidence": x}}.
// The file is replaced atomically while holding an exclusive lock on <path>.lock.
func (m *IdentityMatcher) SaveMapping(path string) error {
	entries := m.Entries()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock mapping file: %w", err)
	}
	defer lock.Unlock()

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp mapping file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp mapping file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace mapping file: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"component": "identity_matcher",
		"path":      path,
		"entries":   len(entries),
	}).Info("Saved player mapping")
	return nil
}

// LoadMapping replaces the in-memory mapping with the file contents.
// A missing file is not an error; the mapping is left untouched.
func (m *IdentityMatcher) LoadMapping(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		m.logger.WithFields(logrus.Fields{
			"component": "identity_matcher",
			"path":      path,
		}).Warn("Mapping file not found, starting with an empty mapping")
		return nil
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return fmt.Errorf("failed to lock mapping file: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read mapping file: %w", err)
	}

	var entries map[string]models.MappingEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to decode mapping file: %w", err)
	}

	kept := m.replace(entries)

	m.logger.WithFields(logrus.Fields{
		"component": "identity_matcher",
		"path":      path,
		"entries":   kept,
	}).Info("Loaded player mapping")
	return nil
}
