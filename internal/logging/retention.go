package logging

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupOldLogs removes files in dir matching pattern that are older than
// retentionDays. A retentionDays value of 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, dir, pattern string, retentionDays int) {
	dir = strings.TrimSpace(dir)
	if retentionDays <= 0 || dir == "" {
		return
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if !prunable(entry, pattern, cutoff) {
			continue
		}
		target := filepath.Join(dir, entry.Name())
		if err := os.Remove(target); err != nil {
			if logger != nil {
				logger.Warn("log retention remove failed; file remains",
					String("path", target),
					Error(err),
				)
			}
			continue
		}
		if logger != nil {
			logger.Debug("log pruned", String("path", target))
		}
	}
}

// prunable reports whether a directory entry is a pattern-matching file whose
// modification time falls before cutoff. An empty pattern matches everything.
func prunable(entry fs.DirEntry, pattern string, cutoff time.Time) bool {
	if entry.IsDir() {
		return false
	}
	if pat := strings.TrimSpace(pattern); pat != "" {
		if ok, err := filepath.Match(pat, entry.Name()); err != nil || !ok {
			return false
		}
	}
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}
