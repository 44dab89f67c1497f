package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func mkPartition(t *testing.T, dataDir, siteID, date string) string {
	t.Helper()
	dir := filepath.Join(dataDir, "events", "site_id="+siteID, "date="+date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir partition: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.parquet"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write partition file: %v", err)
	}
	return dir
}

func TestSweepDeletesOnlyExpiredPartitions(t *testing.T) {
	dataDir := t.TempDir()
	old := mkPartition(t, dataDir, "site-a", "2020-01-01")
	recent := mkPartition(t, dataDir, "site-a", time.Now().UTC().Format("2006-01-02"))

	r := New(dataDir, 30, zerolog.Nop())
	r.Sweep()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected expired partition to be deleted, stat err=%v", err)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("expected recent partition to survive, stat err=%v", err)
	}
}

func TestSweepIgnoresMalformedDateDirs(t *testing.T) {
	dataDir := t.TempDir()
	bad := filepath.Join(dataDir, "events", "site_id=site-a", "date=not-a-date")
	if err := os.MkdirAll(bad, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := New(dataDir, 1, zerolog.Nop())
	r.Sweep()

	if _, err := os.Stat(bad); err != nil {
		t.Fatalf("expected unparsable date dir to be left alone, stat err=%v", err)
	}
}

func TestSweepOnMissingDataDirDoesNotPanic(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "does-not-exist"), 30, zerolog.Nop())
	r.Sweep()
}

// TestRunSweepsImmediatelyOnStartup asserts Run deletes an already-expired
// partition before its first 24-hour tick fires, not after waiting for one.
func TestRunSweepsImmediatelyOnStartup(t *testing.T) {
	dataDir := t.TempDir()
	old := mkPartition(t, dataDir, "site-a", "2020-01-01")

	r := New(dataDir, 30, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(old); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			<-done
			t.Fatalf("expected the startup sweep to delete the expired partition without waiting for the first tick")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestEnabledReflectsRetentionDays(t *testing.T) {
	if (&Reaper{retentionDays: 0}).Enabled() {
		t.Fatalf("expected retentionDays=0 to disable the reaper")
	}
	if !(&Reaper{retentionDays: 30}).Enabled() {
		t.Fatalf("expected retentionDays=30 to enable the reaper")
	}
}
