package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var ErrNotFound = errors.New("scan not found")

const (
	indexDirName    = "_index"
	byEmailDirName  = "byEmail"
	byDomainDirName = "byDomain"
	filePerm        = 0o644
	dirPerm         = 0o755
)

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._@+-]`)

// ScanStore keeps one JSON document and one append-only event log per scan id.
// Writes are not serialized: concurrent updates of the same id can race.
type ScanStore struct {
	dir        string
	byEmailDir string
	byDomain   string
}

// Event is a schema-free log record. Type and At are always set.
type Event map[string]any

func NewEvent(eventType string, fields map[string]any) Event {
	evt := Event{}
	for k, v := range fields {
		evt[k] = v
	}
	evt["type"] = eventType
	if _, ok := evt["at"]; !ok {
		evt["at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	return evt
}

func Open(dir string) (*ScanStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("store: resolve dir: %w", err)
	}
	s := &ScanStore{
		dir:        abs,
		byEmailDir: filepath.Join(abs, indexDirName, byEmailDirName),
		byDomain:   filepath.Join(abs, indexDirName, byDomainDirName),
	}
	for _, d := range []string{s.dir, s.byEmailDir, s.byDomain} {
		if err := os.MkdirAll(d, dirPerm); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", d, err)
		}
	}
	return s, nil
}

func (s *ScanStore) Dir() string { return s.dir }

func (s *ScanStore) ScanPath(scanID string) string {
	return filepath.Join(s.dir, scanID+".json")
}

func (s *ScanStore) EventsPath(scanID string) string {
	return filepath.Join(s.dir, scanID+".events.jsonl")
}

// ArtifactPath names a sibling file of the scan document, e.g. "report.json".
func (s *ScanStore) ArtifactPath(scanID, suffix string) string {
	return filepath.Join(s.dir, scanID+"."+suffix)
}

// Save overwrites the document for scanID.
func (s *ScanStore) Save(scanID string, doc any) error {
	return writeJSON(s.ScanPath(scanID), doc)
}

// WriteArtifact stores an auxiliary JSON file next to the scan document.
func (s *ScanStore) WriteArtifact(scanID, suffix string, v any) error {
	return writeJSON(s.ArtifactPath(scanID, suffix), v)
}

// ReadArtifact loads an auxiliary JSON file; found is false when it does not exist.
func (s *ScanStore) ReadArtifact(scanID, suffix string, dst any) (bool, error) {
	return readJSON(s.ArtifactPath(scanID, suffix), dst)
}

// Load decodes the document into dst. A missing document is not an error.
func (s *ScanStore) Load(scanID string, dst any) (bool, error) {
	return readJSON(s.ScanPath(scanID), dst)
}

// Update deep-merges patch into the stored document and saves the result.
// Nested objects merge recursively; arrays and scalars are replaced.
func (s *ScanStore) Update(scanID string, patch any) (map[string]any, error) {
	var existing map[string]any
	found, err := s.Load(scanID, &existing)
	if err != nil {
		return nil, err
	}
	if !found || existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}

	patchMap, err := toObject(patch)
	if err != nil {
		return nil, fmt.Errorf("store: encode patch: %w", err)
	}

	merged := DeepMerge(existing, patchMap)
	if err := s.Save(scanID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// UpdateInto is Update followed by decoding the merged document into dst.
func (s *ScanStore) UpdateInto(scanID string, patch any, dst any) error {
	merged, err := s.Update(scanID, patch)
	if err != nil {
		return err
	}
	return Decode(merged, dst)
}

// AppendEvent appends one JSON line to the scan's event log.
func (s *ScanStore) AppendEvent(scanID string, evt Event) error {
	if _, ok := evt["type"]; !ok {
		return errors.New("store: event type is required")
	}
	if _, ok := evt["at"]; !ok {
		evt["at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("store: encode event: %w", err)
	}

	f, err := os.OpenFile(s.EventsPath(scanID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("store: open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("store: append event: %w", err)
	}
	return nil
}

// Events reads back the event log in append order.
func (s *ScanStore) Events(scanID string) ([]Event, error) {
	data, err := os.ReadFile(s.EventsPath(scanID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: read event log: %w", err)
	}

	var events []Event
	for _, raw := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			log.Warn("Skipping malformed scan event", "scan_id", scanID, "error", err)
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

func (s *ScanStore) IndexByEmail(email, scanID string) error {
	return s.addToIndex(s.byEmailDir, email, scanID)
}

func (s *ScanStore) IndexByDomain(domain, scanID string) error {
	return s.addToIndex(s.byDomain, domain, scanID)
}

func (s *ScanStore) FindByEmail(email string) []string {
	return s.findInIndex(s.byEmailDir, email)
}

func (s *ScanStore) FindByDomain(domain string) []string {
	return s.findInIndex(s.byDomain, domain)
}

// SafeKey normalizes an index key: trimmed, lowercased, and anything outside
// [a-z0-9._@+-] replaced by an underscore.
func SafeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	return unsafeKeyChars.ReplaceAllString(key, "_")
}

type indexFile struct {
	ScanIDs []string `json:"scan_ids"`
}

func (s *ScanStore) addToIndex(dir, rawKey, scanID string) error {
	key := SafeKey(rawKey)
	if key == "" {
		return nil
	}
	path := filepath.Join(dir, key+".json")
	idx := readIndex(path)
	if slices.Contains(idx.ScanIDs, scanID) {
		return nil
	}
	idx.ScanIDs = append(idx.ScanIDs, scanID)
	return writeJSON(path, idx)
}

func (s *ScanStore) findInIndex(dir, rawKey string) []string {
	key := SafeKey(rawKey)
	if key == "" {
		return []string{}
	}
	return readIndex(filepath.Join(dir, key+".json")).ScanIDs
}

func readIndex(path string) indexFile {
	idx := indexFile{ScanIDs: []string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to read scan index", "path", path, "error", err)
		}
		return idx
	}
	var parsed indexFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		log.Warn("Ignoring malformed scan index", "path", path, "error", err)
		return idx
	}
	if parsed.ScanIDs != nil {
		idx.ScanIDs = parsed.ScanIDs
	}
	return idx
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", filepath.Base(path), err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("store: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileAtomic replaces path via a temp file in the same directory, so
// readers see either the old or the new content, never a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, dst any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("store: read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("store: decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
