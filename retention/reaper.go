// Package retention implements the daily columnar-file reaper from spec
// §4.12: deletes partitions older than the configured retention window.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Reaper deletes site_id=*/date=* partition directories older than
// retentionDays once per day. retentionDays <= 0 disables the reaper
// entirely, per spec §4.12.
type Reaper struct {
	dataDir       string
	retentionDays int
	logger        zerolog.Logger
}

// New builds a Reaper rooted at dataDir.
func New(dataDir string, retentionDays int, logger zerolog.Logger) *Reaper {
	return &Reaper{dataDir: dataDir, retentionDays: retentionDays, logger: logger.With().Str("component", "retention").Logger()}
}

// Enabled reports whether this reaper actually deletes anything.
func (r *Reaper) Enabled() bool {
	return r.retentionDays > 0
}

// Run blocks until ctx is cancelled, sweeping immediately on startup and
// then once every 24 hours thereafter, per spec §4.12.
func (r *Reaper) Run(ctx context.Context) {
	if !r.Enabled() {
		r.logger.Info().Msg("retention disabled; partitions are kept indefinitely")
		return
	}

	r.Sweep()

	timer := time.NewTimer(24 * time.Hour)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.Sweep()
			timer.Reset(24 * time.Hour)
		}
	}
}

// Sweep deletes every partition directory whose date component is older
// than the retention window, evaluated against the current UTC date.
func (r *Reaper) Sweep() {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, 0, -r.retentionDays)

	eventsDir := filepath.Join(r.dataDir, "events")
	siteDirs, err := os.ReadDir(eventsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Msg("failed to list site partitions")
		}
		return
	}

	for _, siteDir := range siteDirs {
		if !siteDir.IsDir() || !strings.HasPrefix(siteDir.Name(), "site_id=") {
			continue
		}
		sitePath := filepath.Join(eventsDir, siteDir.Name())
		dateDirs, err := os.ReadDir(sitePath)
		if err != nil {
			r.logger.Warn().Err(err).Str("path", sitePath).Msg("failed to list date partitions")
			continue
		}
		for _, dateDir := range dateDirs {
			if !dateDir.IsDir() || !strings.HasPrefix(dateDir.Name(), "date=") {
				continue
			}
			dateStr := strings.TrimPrefix(dateDir.Name(), "date=")
			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				continue
			}
			if date.Before(cutoff) {
				r.deletePartition(filepath.Join(sitePath, dateDir.Name()))
			}
		}
	}
}

func (r *Reaper) deletePartition(path string) {
	fileCount := 0
	if entries, err := os.ReadDir(path); err == nil {
		fileCount = len(entries)
	}
	if err := os.RemoveAll(path); err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("failed to delete expired partition")
		return
	}
	r.logger.Info().Str("path", path).Str("file_count", strconv.Itoa(fileCount)).Msg("deleted expired partition")
}
