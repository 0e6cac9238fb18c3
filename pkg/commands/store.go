// Package commands persists the library of named command shortcuts
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"spark-terminal/pkg/apperror"
	"spark-terminal/pkg/logging"
)

// Entry is one named shortcut
type Entry struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	IsHex   bool   `json:"is_hex"`
}

// ImportMode selects how imported entries combine with the current ones
type ImportMode int

const (
	// ImportReplace discards the current entries
	ImportReplace ImportMode = iota
	// ImportMerge appends entries whose name is not already present
	ImportMerge
)

// String returns the string representation of ImportMode
func (m ImportMode) String() string {
	if m == ImportMerge {
		return "merge"
	}
	return "replace"
}

// ParseImportMode converts "replace" or "merge" to an ImportMode
func ParseImportMode(s string) (ImportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace", "":
		return ImportReplace, nil
	case "merge":
		return ImportMerge, nil
	}
	return ImportReplace, apperror.Newf(apperror.KindValidation, "parse import mode", "invalid import mode: %q", s)
}

// DefaultEntries returns the shortcuts a new store is seeded with
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "Check Connection", Command: "AT"},
		{Name: "Get Device Info", Command: "ATI"},
		{Name: "Reset Device", Command: "ATZ"},
	}
}

// Store is the ordered shortcut list backed by a JSON file. Every mutation
// is persisted before it returns; if persisting fails the in-memory list is
// kept and a persistence error is returned.
type Store struct {
	mu      sync.Mutex
	path    string
	entries []Entry
	locs    *Locations
	log     *logrus.Entry
}

// Open resolves the store file from locs and loads it
func Open(locs Locations, log *logrus.Entry) (*Store, error) {
	log = logging.For(log, "commands")

	path, err := locs.Resolve(log)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path, locs: &locs, log: log}
	if err := s.load(); err != nil {
		return s, err
	}
	return s, nil
}

// OpenFile loads a store from an explicit file, without location resolution
func OpenFile(path string, log *logrus.Entry) (*Store, error) {
	s := &Store{path: path, log: logging.For(log, "commands")}
	if err := s.load(); err != nil {
		return s, err
	}
	return s, nil
}

// load reads the file. Missing, unreadable, malformed or empty files are
// treated as no data and replaced by the defaults.
func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := readEntries(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithError(err).Warn("command file unusable, reseeding defaults")
		}
		entries = nil
	}

	if len(entries) == 0 {
		s.entries = DefaultEntries()
		return s.saveLocked()
	}

	s.entries = entries
	s.log.WithField("count", len(entries)).Debugf("loaded commands from %s", s.path)
	return nil
}

// Path returns the file the store persists to
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Commands returns a copy of the entries in order
func (s *Store) Commands() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Get returns the entry at index
func (s *Store) Get(index int) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[index], true
}

// Add appends an entry
func (s *Store) Add(name, command string, isHex bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, Entry{Name: name, Command: command, IsHex: isHex})
	return s.saveLocked()
}

// Update replaces the entry at index. An index out of range is ignored.
func (s *Store) Update(index int, name, command string, isHex bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entries) {
		return nil
	}
	s.entries[index] = Entry{Name: name, Command: command, IsHex: isHex}
	return s.saveLocked()
}

// Delete removes the entry at index. An index out of range is ignored.
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.entries) {
		return nil
	}
	s.entries = append(s.entries[:index], s.entries[index+1:]...)
	return s.saveLocked()
}

// BulkReplace replaces find with replace in every command containing it and
// returns the number of entries changed. An empty find changes nothing.
func (s *Store) BulkReplace(find, replace string) (int, error) {
	if find == "" {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range s.entries {
		if strings.Contains(s.entries[i].Command, find) {
			s.entries[i].Command = strings.ReplaceAll(s.entries[i].Command, find, replace)
			count++
		}
	}

	if count == 0 {
		return 0, nil
	}
	return count, s.saveLocked()
}

// Import combines entries with the store. In merge mode an entry is added
// only if its name was not present before the import started; names within
// the imported batch are not checked against each other.
func (s *Store) Import(entries []Entry, mode ImportMode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == ImportReplace {
		s.entries = append([]Entry(nil), entries...)
		return len(entries), s.saveLocked()
	}

	existing := make(map[string]struct{}, len(s.entries))
	for _, e := range s.entries {
		existing[e.Name] = struct{}{}
	}

	added := 0
	for _, e := range entries {
		if _, ok := existing[e.Name]; ok {
			continue
		}
		s.entries = append(s.entries, e)
		added++
	}

	if added == 0 {
		return 0, nil
	}
	return added, s.saveLocked()
}

// ImportFile reads a command file and imports it
func (s *Store) ImportFile(path string, mode ImportMode) (int, error) {
	entries, err := readEntries(path)
	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return 0, apperror.Wrap(apperror.KindValidation, "import "+path, err)
		}
		return 0, apperror.Wrap(apperror.KindPersistence, "import "+path, err)
	}

	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return 0, apperror.Newf(apperror.KindValidation, "import "+path, "entry %d has no name", i+1)
		}
	}

	return s.Import(entries, mode)
}

// Export writes the current entries to path
func (s *Store) Export(path string) error {
	s.mu.Lock()
	entries := append([]Entry(nil), s.entries...)
	s.mu.Unlock()

	if err := writeEntries(path, entries); err != nil {
		return apperror.Wrap(apperror.KindPersistence, "export "+path, err)
	}
	return nil
}

// SetCustomPath moves the store to path and records it in the config file so
// later sessions load from there
func (s *Store) SetCustomPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return apperror.Wrap(apperror.KindValidation, "set commands path", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.path
	s.path = abs
	if err := s.saveLocked(); err != nil {
		s.path = prev
		return err
	}

	if s.locs != nil {
		if err := s.locs.WriteCustomPath(abs); err != nil {
			return apperror.Wrap(apperror.KindPersistence, "set commands path", err)
		}
	}

	s.log.Infof("commands file moved from %s to %s", prev, abs)
	return nil
}

func (s *Store) saveLocked() error {
	if err := writeEntries(s.path, s.entries); err != nil {
		s.log.WithError(err).Error("failed to save commands")
		return apperror.Wrap(apperror.KindPersistence, "save commands", err)
	}
	return nil
}

func readEntries(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// writeEntries saves atomically through a temporary file in the same directory
func writeEntries(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create commands directory: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal commands: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
