package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/aluiziolira/amiami-scraper/models"
)

// TimestampLayout names dump files and error log entries.
const TimestampLayout = "20060102_150405"

const enrichedSuffix = "-mapped_items.json"

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// RawFilename is the raw dump name for one crawl: <timestamp>-<query key>.json.
func RawFilename(timestamp string, q models.Query) string {
	return timestamp + "-" + q.String() + ".json"
}

// EnrichedFilename is the enriched dump name paired with a crawl timestamp.
func EnrichedFilename(timestamp string) string {
	return timestamp + enrichedSuffix
}

// Store owns the on-disk layout: raw dumps and the error log under the output
// directory, enriched dumps and the manifest under the web data directory.
type Store struct {
	outputDir    string
	webDataDir   string
	manifestFile string
	errorLogFile string
}

// NewStore builds a store rooted at the directories configured in cfg.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		outputDir:    cfg.OutputDir,
		webDataDir:   cfg.WebDataDir,
		manifestFile: cfg.ManifestFile,
		errorLogFile: cfg.ErrorLogFile,
	}
}

// RawPath returns the full path of a raw dump.
func (s *Store) RawPath(filename string) string {
	return filepath.Join(s.outputDir, filename)
}

// EnrichedPath returns the full path of an enriched dump.
func (s *Store) EnrichedPath(filename string) string {
	return filepath.Join(s.webDataDir, filename)
}

// ManifestPath returns the full path of the manifest.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.webDataDir, s.manifestFile)
}

// ErrorLogPath returns the full path of the error log.
func (s *Store) ErrorLogPath() string {
	return filepath.Join(s.outputDir, s.errorLogFile)
}

// WriteRawDump writes items as a raw dump. ItemsLength is derived from items.
func (s *Store) WriteRawDump(filename string, items []models.ListItem) error {
	if items == nil {
		items = []models.ListItem{}
	}
	dump := models.RawDump{ItemsLength: len(items), Items: items}
	if err := writeJSONFile(s.RawPath(filename), dump); err != nil {
		return fmt.Errorf("write raw dump: %w", err)
	}
	return nil
}

// ReadRawDump loads a raw dump and checks its length header.
func (s *Store) ReadRawDump(filename string) (*models.RawDump, error) {
	var dump models.RawDump
	if err := readJSONFile(s.RawPath(filename), &dump); err != nil {
		return nil, fmt.Errorf("read raw dump: %w", err)
	}
	if dump.Items == nil {
		dump.Items = []models.ListItem{}
	}
	if dump.ItemsLength != len(dump.Items) {
		return nil, fmt.Errorf("raw dump %s: items_length %d does not match %d items", filename, dump.ItemsLength, len(dump.Items))
	}
	return &dump, nil
}

// WriteEnrichedDump replaces the enriched dump atomically so a crash never
// leaves a truncated checkpoint behind.
func (s *Store) WriteEnrichedDump(filename string, dump *models.EnrichedDump) error {
	if err := writeJSONFile(s.EnrichedPath(filename), dump); err != nil {
		return fmt.Errorf("write enriched dump: %w", err)
	}
	return nil
}

// ReadEnrichedDump loads an enriched dump. found is false when no checkpoint exists yet.
func (s *Store) ReadEnrichedDump(filename string) (dump *models.EnrichedDump, found bool, err error) {
	var out models.EnrichedDump
	if err := readJSONFile(s.EnrichedPath(filename), &out); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read enriched dump: %w", err)
	}
	if out.Items == nil {
		out.Items = []models.OutputItem{}
	}
	if out.ItemsLength != len(out.Items) {
		return nil, false, fmt.Errorf("enriched dump %s: items_length %d does not match %d items", filename, out.ItemsLength, len(out.Items))
	}
	if out.CurrentIndex < -1 {
		return nil, false, fmt.Errorf("enriched dump %s: invalid current_index %d", filename, out.CurrentIndex)
	}
	return &out, true, nil
}

// AppendManifest registers filename in the manifest unless it is already listed.
func (s *Store) AppendManifest(filename string) (bool, error) {
	path := s.ManifestPath()
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("read manifest: %w", err)
	}
	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == filename {
			return false, nil
		}
	}

	if err := appendLine(path, filename); err != nil {
		return false, fmt.Errorf("append manifest: %w", err)
	}
	return true, nil
}

// AppendErrorLog appends one line to the error log.
func (s *Store) AppendErrorLog(line string) error {
	if err := appendLine(s.ErrorLogPath(), line); err != nil {
		return fmt.Errorf("append error log: %w", err)
	}
	return nil
}

// Manifest lists the registered enriched dump filenames in order.
func (s *Store) Manifest() ([]string, error) {
	data, err := os.ReadFile(s.ManifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	names := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func writeJSONFile(filename string, v any) error {
	if err := ensureDir(filename); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	buffer := bufio.NewWriter(tmp)
	encoder := json.NewEncoder(buffer)
	encoder.SetIndent("", "    ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(filename), err)
	}
	if err := buffer.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", filepath.Base(filename), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(filename), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(filename), err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(filename), err)
	}
	return nil
}

func readJSONFile(filename string, v any) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(filename), err)
	}
	return nil
}

func appendLine(filename, line string) error {
	if err := ensureDir(filename); err != nil {
		return err
	}
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
