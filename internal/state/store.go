// Package state persists the service document with atomic writes and backup recovery.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Alias1177/fxguard/internal/clock"
	"github.com/Alias1177/fxguard/internal/metrics"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store reads and writes the state document at a fixed path
type Store struct {
	mu         sync.Mutex
	path       string
	backupPath string
	tempPath   string
	clock      clock.Clock
	logger     zerolog.Logger
}

// NewStore creates a store for path. Backup and temp files live next to it.
func NewStore(path string, clk clock.Clock) *Store {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return &Store{
		path:       path,
		backupPath: base + ".backup.json",
		tempPath:   base + ".tmp.json",
		clock:      clk,
		logger:     log.With().Str("component", "state_store").Str("path", path).Logger(),
	}
}

// Path returns the main file location
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted document, recovering from the backup or starting fresh when needed
func (s *Store) Load() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save validates and atomically writes doc
func (s *Store) Save(doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc, true)
}

// Update loads the document, applies fn and saves the result
func (s *Store) Update(fn func(doc *models.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	fn(doc)
	return s.save(doc, true)
}

// Get returns the top-level field key decoded as generic JSON, or def when it is absent
func (s *Store) Get(key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, err := toFields(s.load())
	if err != nil {
		s.logger.Error().Err(err).Msg("Error encoding state document")
		return def
	}
	raw, ok := fields[key]
	if !ok {
		return def
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// Set overwrites one top-level field. Unknown keys and mistyped values are rejected.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	fields, err := toFields(doc)
	if err != nil {
		return fmt.Errorf("encoding state document: %w", err)
	}
	if _, ok := fields[key]; !ok {
		return fmt.Errorf("unknown state field %q", key)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding value for %q: %w", key, err)
	}
	fields[key] = raw

	merged, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding state document: %w", err)
	}
	var updated models.Document
	if err := json.Unmarshal(merged, &updated); err != nil {
		return fmt.Errorf("invalid value for %q: %w", key, err)
	}
	return s.save(&updated, true)
}

func (s *Store) load() *models.Document {
	doc, err := readDocument(s.path)
	if err == nil {
		return doc
	}
	s.logger.Warn().Err(err).Msg("Main state file unusable")

	doc, backupErr := readDocument(s.backupPath)
	if backupErr == nil {
		s.logger.Info().Msg("Restoring state from backup")
		// Skip the backup copy so the corrupt main file cannot overwrite the good backup
		if err := s.save(doc, false); err != nil {
			s.logger.Error().Err(err).Msg("Error restoring backup as main state file")
		}
		return doc
	}
	if !errors.Is(backupErr, os.ErrNotExist) {
		s.logger.Error().Err(backupErr).Msg("Backup state file unusable")
	}

	s.logger.Warn().Msg("Creating new state document")
	fresh := models.NewDocument(s.clock.Now())
	if err := s.save(fresh, false); err != nil {
		s.logger.Error().Err(err).Msg("Error writing fresh state document")
	}
	return fresh
}

func (s *Store) save(doc *models.Document, backup bool) (err error) {
	defer func() { metrics.IncStateSave(err) }()

	if doc == nil {
		return errors.New("nil state document")
	}
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid state document: %w", err)
	}
	if doc.OpenTrades == nil {
		doc.OpenTrades = []models.Trade{}
	}
	if doc.ClosedTrades == nil {
		doc.ClosedTrades = []models.Trade{}
	}
	doc.LastUpdated = s.clock.Now()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	if err := writeSynced(s.tempPath, data); err != nil {
		os.Remove(s.tempPath)
		return fmt.Errorf("writing temp state file: %w", err)
	}

	if backup {
		if err := copyFile(s.path, s.backupPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("Error refreshing state backup")
		}
	}

	if err := os.Rename(s.tempPath, s.path); err != nil {
		os.Remove(s.tempPath)
		return fmt.Errorf("replacing state file: %w", err)
	}

	// best-effort fsync of the parent directory
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	s.logger.Debug().Msg("State saved")
	return nil
}

func readDocument(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	for _, key := range models.RequiredDocumentFields {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("missing required field %q", key)
		}
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if doc.OpenTrades == nil {
		doc.OpenTrades = []models.Trade{}
	}
	if doc.ClosedTrades == nil {
		doc.ClosedTrades = []models.Trade{}
	}
	return &doc, nil
}

func toFields(doc *models.Document) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
