package export

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrSnapshotNotFound indicates a missing snapshot file.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Standard snapshot names
const (
	SnapshotState     = "state.json"
	SnapshotMarkdown  = "blueprint.md"
	SnapshotEvents    = "events.json"
	snapshotMetadata  = "metadata.json"
	defaultCompressAt = 10 * 1024
)

// SnapshotConfig configures Snapshots.
type SnapshotConfig struct {
	BaseDir       string // Base directory (default: ".blueprint")
	CompressAbove int64  // Compress files at least this large (default: 10KB)
}

// Snapshots stores per-run files under <base>/runs/<run_id>.
type Snapshots struct {
	baseDir       string
	compressAbove int64
}

// SnapshotInfo describes one stored file.
type SnapshotInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunMeta is the metadata recorded for every run directory.
type RunMeta struct {
	RunID     string    `json:"run_id"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// NewSnapshots creates a snapshot store.
func NewSnapshots(cfg SnapshotConfig) *Snapshots {
	if cfg.BaseDir == "" {
		cfg.BaseDir = ".blueprint"
	}
	if cfg.CompressAbove == 0 {
		cfg.CompressAbove = defaultCompressAt
	}
	return &Snapshots{baseDir: cfg.BaseDir, compressAbove: cfg.CompressAbove}
}

// BaseDir returns the base directory.
func (s *Snapshots) BaseDir() string {
	return s.baseDir
}

// RunDir returns the directory for a run.
func (s *Snapshots) RunDir(runID string) string {
	return filepath.Join(s.baseDir, "runs", runID)
}

// Save writes a snapshot file, gzip-compressing binary-safe text above the
// threshold. Markdown stays uncompressed so it can be opened directly.
func (s *Snapshots) Save(runID, name string, data []byte) error {
	path := filepath.Join(s.RunDir(runID), name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	if s.shouldCompress(name, int64(len(data))) {
		os.Remove(path)
		return saveCompressed(path+".gz", data)
	}
	os.Remove(path + ".gz")
	return os.WriteFile(path, data, 0644)
}

// SaveJSON encodes v as indented JSON and saves it.
func (s *Snapshots) SaveJSON(runID, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.Save(runID, name, data)
}

// Load reads a snapshot file, decompressing transparently.
func (s *Snapshots) Load(runID, name string) ([]byte, error) {
	path := filepath.Join(s.RunDir(runID), name)

	if data, err := loadCompressed(path + ".gz"); err == nil {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	return data, err
}

// LoadJSON loads a snapshot file and decodes it into v.
func (s *Snapshots) LoadJSON(runID, name string, v any) error {
	data, err := s.Load(runID, name)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Has reports whether a snapshot file exists.
func (s *Snapshots) Has(runID, name string) bool {
	path := filepath.Join(s.RunDir(runID), name)
	for _, p := range []string{path + ".gz", path} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// List returns the files stored for a run, sorted by name.
func (s *Snapshots) List(runID string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(s.RunDir(runID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []SnapshotInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name, compressed := strings.CutSuffix(entry.Name(), ".gz")
		out = append(out, SnapshotInfo{
			Name:       name,
			Size:       info.Size(),
			Compressed: compressed,
			CreatedAt:  info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WriteMeta records run metadata.
func (s *Snapshots) WriteMeta(meta RunMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.RunDir(meta.RunID), 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.RunDir(meta.RunID), snapshotMetadata), data, 0644)
}

// ReadMeta loads run metadata.
func (s *Snapshots) ReadMeta(runID string) (*RunMeta, error) {
	return readMeta(s.RunDir(runID))
}

func readMeta(runDir string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(runDir, snapshotMetadata))
	if os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode run metadata: %w", err)
	}
	return &meta, nil
}

func (s *Snapshots) shouldCompress(name string, size int64) bool {
	if strings.EqualFold(filepath.Ext(name), ".md") {
		return false
	}
	return size >= s.compressAbove
}

func saveCompressed(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

func loadCompressed(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	return io.ReadAll(gz)
}
