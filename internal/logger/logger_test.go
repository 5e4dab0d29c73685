package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TIANLI0/ec-thermalmgmt/internal/types"
)

func TestNewWritesToDir(t *testing.T) {
	dir := t.TempDir()
	l, err := New(types.LogConfig{Dir: dir, MaxSizeMB: 1, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("风扇 %s 占空比 %d", "cpu", 23)
	l.Close()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("log file is empty")
	}
	if l.GetLogDir() != dir {
		t.Errorf("GetLogDir() = %q", l.GetLogDir())
	}
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := New(types.LogConfig{Dir: dir, MaxAgeDays: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer l.Close()

	old := filepath.Join(dir, "ecthermald-2020-01-01T00-00-00.000.log.gz")
	fresh := filepath.Join(dir, "ecthermald-2099-01-01T00-00-00.000.log.gz")
	for _, p := range []string{old, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	l.CleanOldLogs()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("old rotated log should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh rotated log removed: %v", err)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.SetDebugMode(true)
	l.Debug("ignored %d", 1)
	l.CleanOldLogs()
	l.Close()
}
