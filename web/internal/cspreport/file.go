package cspreport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore writes one JSON file per report. Intended for development.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) Save(_ context.Context, report StoredReport) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(report.Filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// List reads every report file. Unreadable or malformed files are skipped.
func (s *FileStore) List(ctx context.Context, limit int) ([]StoredReport, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []StoredReport{}, nil
		}
		return nil, fmt.Errorf("read report dir: %w", err)
	}

	reports := make([]StoredReport, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "csp-report-") || !strings.HasSuffix(name, ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable CSP report", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}

		var report StoredReport
		if err := json.Unmarshal(data, &report); err != nil {
			slog.WarnContext(ctx, "skipping malformed CSP report", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		report.Filename = name
		reports = append(reports, report)
	}

	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
