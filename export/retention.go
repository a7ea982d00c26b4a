package export

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionConfig defines how long run snapshots are kept.
type RetentionConfig struct {
	RetentionDays        int  // Days before a run is deleted
	ArchiveAfterDays     int  // Days before a run is archived
	ArchiveRetentionDays int  // Days to keep archives
	KeepFailed           bool // Never remove failed runs
	KeepMinRuns          int  // Minimum runs to keep regardless of age
}

// DefaultRetentionConfig returns the default policy.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays:        30,
		ArchiveAfterDays:     7,
		ArchiveRetentionDays: 90,
		KeepFailed:           true,
		KeepMinRuns:          20,
	}
}

// Retention applies a RetentionConfig to a Snapshots directory.
type Retention struct {
	baseDir string
	config  RetentionConfig
	now     func() time.Time
}

// NewRetention creates a retention manager for the snapshot base directory.
func NewRetention(baseDir string, config RetentionConfig) *Retention {
	return &Retention{baseDir: baseDir, config: config, now: time.Now}
}

// CleanupResult summarizes cleanup actions.
type CleanupResult struct {
	Archived   []string `json:"archived"`
	Deleted    []string `json:"deleted"`
	Kept       []string `json:"kept"`
	Errors     []string `json:"errors,omitempty"`
	SpaceSaved int64    `json:"space_saved"`
}

type runEntry struct {
	id   string
	meta *RunMeta
	size int64
}

// Cleanup archives or deletes run directories by age, oldest first.
func (r *Retention) Cleanup(dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{Archived: []string{}, Deleted: []string{}, Kept: []string{}}

	runsDir := filepath.Join(r.baseDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	var runs []runEntry
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(runsDir, entry.Name())
		meta, err := readMeta(dir)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("load %s: %v", entry.Name(), err))
			continue
		}
		runs = append(runs, runEntry{id: entry.Name(), meta: meta, size: dirSize(dir)})
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].meta.EndedAt.Before(runs[j].meta.EndedAt)
	})

	now := r.now()
	deleteBefore := now.AddDate(0, 0, -r.config.RetentionDays)
	archiveBefore := now.AddDate(0, 0, -r.config.ArchiveAfterDays)

	removed := 0
	for _, run := range runs {
		keep := run.meta.EndedAt.IsZero() ||
			(r.config.KeepFailed && run.meta.Status == "failed") ||
			len(runs)-removed-1 < r.config.KeepMinRuns
		if keep {
			result.Kept = append(result.Kept, run.id)
			continue
		}

		dir := filepath.Join(runsDir, run.id)
		switch {
		case run.meta.EndedAt.Before(deleteBefore):
			if !dryRun {
				if err := os.RemoveAll(dir); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", run.id, err))
					continue
				}
			}
			result.Deleted = append(result.Deleted, run.id)
			result.SpaceSaved += run.size
			removed++
		case run.meta.EndedAt.Before(archiveBefore):
			if !dryRun {
				if err := r.archive(run.id, run.meta.EndedAt); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("archive %s: %v", run.id, err))
					continue
				}
			}
			result.Archived = append(result.Archived, run.id)
			removed++
		default:
			result.Kept = append(result.Kept, run.id)
		}
	}

	return result, nil
}

// archive writes the run directory to archive/<yyyy-mm>/<run_id>.tar.gz and
// removes the original.
func (r *Retention) archive(runID string, endedAt time.Time) error {
	runDir := filepath.Join(r.baseDir, "runs", runID)
	archiveDir := filepath.Join(r.baseDir, "archive", endedAt.Format("2006-01"))
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return err
	}
	archivePath := filepath.Join(archiveDir, runID+".tar.gz")

	if err := writeTarGz(archivePath, runDir, runID); err != nil {
		os.Remove(archivePath)
		return err
	}
	return os.RemoveAll(runDir)
}

func writeTarGz(archivePath, srcDir, prefix string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	walkErr := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(srcDir, path)
		header.Name = filepath.ToSlash(filepath.Join(prefix, rel))
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
	if walkErr != nil {
		return walkErr
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

// CleanupArchives removes archives older than the archive retention period.
func (r *Retention) CleanupArchives(dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{Deleted: []string{}, Kept: []string{}}
	threshold := r.now().AddDate(0, 0, -r.config.ArchiveRetentionDays)

	err := filepath.Walk(filepath.Join(r.baseDir, "archive"), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(info.Name(), ".tar.gz") {
			return nil
		}
		runID := strings.TrimSuffix(info.Name(), ".tar.gz")
		if !info.ModTime().Before(threshold) {
			result.Kept = append(result.Kept, runID)
			return nil
		}
		if !dryRun {
			if err := os.Remove(path); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("delete archive %s: %v", runID, err))
				return nil
			}
		}
		result.Deleted = append(result.Deleted, runID)
		result.SpaceSaved += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return result, nil
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
