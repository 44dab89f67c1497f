package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// partitionExt is the columnar file extension written to disk.
const partitionExt = "parquet"

// partitionDir returns the directory for one (site_id, date) partition.
func (e *Engine) partitionDir(siteID, date string) string {
	return filepath.Join(e.dataDir, "events", "site_id="+siteID, "date="+date)
}

// nextFileIndex implements spec §4.6.1: read the partition directory once,
// find the maximum numeric prefix among existing files, and return
// max(K,0)+1. If the directory does not exist, create it and return 1.
func nextFileIndex(dir string, logger func(string)) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			if logger != nil {
				logger(fmt.Sprintf("failed to create partition directory %s: %v", dir, mkErr))
			}
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	max := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		dot := strings.Index(name, ".")
		if dot < 0 {
			continue
		}
		n, convErr := strconv.Atoi(name[:dot])
		if convErr != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// partitionFilePath builds the NNNN.parquet path for the given index.
func partitionFilePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%04d.%s", index, partitionExt))
}
