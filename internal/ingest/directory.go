package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clauselens/clauselens/constants"
)

// FileOutcome is one row of a directory ingest summary.
type FileOutcome struct {
	Path       string
	DocumentID uuid.UUID
	Duplicate  bool
	Err        string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// IngestDirectory walks root, skips hidden entries if requested, and ingests
// every file with an allowed extension. Per-file failures are recorded and
// the walk continues.
func (i *Ingestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]FileOutcome, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileOutcome
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileOutcome{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestFile(ctx, IngestRequest{SourcePath: path})
		if err != nil {
			results = append(results, FileOutcome{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, FileOutcome{
			Path:       path,
			DocumentID: r.Document.ID,
			Duplicate:  r.Duplicate,
		})
		stats.Succeeded++
		if r.Duplicate {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	i.logger.Info("ingest.directory",
		"root", root, "scanned", stats.Scanned, "matched", stats.Matched,
		"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed,
	)
	return results, stats, nil
}
