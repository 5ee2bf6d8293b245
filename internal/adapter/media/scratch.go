package media

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"quiztube/internal/logger"

	"go.uber.org/zap"
)

// .wav covers files written before conversion switched to MP3.
var scratchExts = map[string]bool{".src": true, AudioExt: true, ".wav": true}

// SweepScratch removes downloaded and converted audio older than olderThan, left behind by a crashed process.
func SweepScratch(dir string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !scratchExts[ext] {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Get().Warn("Failed to sweep scratch file", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Get().Info("Swept stale scratch files", zap.String("dir", dir), zap.Int("removed", removed))
	}
	return removed, nil
}
