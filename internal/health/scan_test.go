package health

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func stamped(offset time.Duration, rest string) string {
	return time.Now().Add(offset).Format(time.RFC3339) + " " + rest
}

func TestScanLogs_Classification(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "mcp-server-github.log", []string{
		stamped(-5*time.Minute, "[info] github server started"),
		stamped(-4*time.Minute, "[warn] github rate limit approaching"),
		stamped(-3*time.Minute, "[error] github request failed"),
		stamped(-2*time.Minute, "[error] github request failed again"),
		stamped(-1*time.Minute, "[info] filesystem server idle"),
	})

	summary, err := scanLogs(dir, "github", DefaultScanWindow, DefaultMaxLines)
	if err != nil {
		t.Fatalf("scanLogs failed: %v", err)
	}

	if summary.errorCount != 2 {
		t.Errorf("errorCount = %d, want 2", summary.errorCount)
	}
	if summary.warningCount != 1 {
		t.Errorf("warningCount = %d, want 1", summary.warningCount)
	}
	if !summary.matched() {
		t.Error("Expected matched summary")
	}
	if summary.lastSeen == nil {
		t.Fatal("Expected lastSeen to be set")
	}

	// Most recent error first
	if len(summary.recentErrors) != 2 {
		t.Fatalf("recentErrors = %v", summary.recentErrors)
	}
	if !strings.Contains(summary.recentErrors[0], "failed again") {
		t.Errorf("Expected newest error first, got %q", summary.recentErrors[0])
	}
}

func TestScanLogs_NoMention(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, "host.log", []string{
		stamped(-time.Minute, "[error] filesystem blew up"),
	})

	summary, err := scanLogs(dir, "github", DefaultScanWindow, DefaultMaxLines)
	if err != nil {
		t.Fatal(err)
	}
	if summary.matched() {
		t.Error("Expected no match for unmentioned server")
	}
	if summary.errorCount != 0 {
		t.Errorf("errorCount = %d, want 0", summary.errorCount)
	}
}

func TestScanLogs_OldLinesExcluded(t *testing.T) {
	dir := t.TempDir()
	// File mtime is fresh but the line's own timestamp is outside the window
	writeLog(t, dir, "host.log", []string{
		stamped(-3*time.Hour, "[error] github ancient failure"),
		stamped(-time.Minute, "[info] github ok now"),
	})

	summary, err := scanLogs(dir, "github", time.Hour, DefaultMaxLines)
	if err != nil {
		t.Fatal(err)
	}
	if summary.errorCount != 0 {
		t.Errorf("Stale error line should not count, errorCount = %d", summary.errorCount)
	}
	if !summary.matched() {
		t.Error("Recent info line should still count as activity")
	}
}

func TestScanLogs_StaleFileSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("[error] github broke\n"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	summary, err := scanLogs(dir, "github", time.Hour, DefaultMaxLines)
	if err != nil {
		t.Fatal(err)
	}
	if summary.matched() {
		t.Error("File modified before the window should be ignored")
	}
}

func TestScanLogs_MissingDir(t *testing.T) {
	_, err := scanLogs(filepath.Join(t.TempDir(), "absent"), "github", time.Hour, DefaultMaxLines)
	if err == nil {
		t.Fatal("Expected error for missing log directory")
	}
}

func TestScanLogs_RecentListCapped(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < maxRecentLines+5; i++ {
		lines = append(lines, stamped(-time.Minute, fmt.Sprintf("[error] github failure %d", i)))
	}
	writeLog(t, dir, "host.log", lines)

	summary, err := scanLogs(dir, "github", time.Hour, DefaultMaxLines)
	if err != nil {
		t.Fatal(err)
	}
	if summary.errorCount != maxRecentLines+5 {
		t.Errorf("errorCount = %d, want %d", summary.errorCount, maxRecentLines+5)
	}
	if len(summary.recentErrors) != maxRecentLines {
		t.Errorf("recentErrors length = %d, want cap %d", len(summary.recentErrors), maxRecentLines)
	}
	if !strings.Contains(summary.recentErrors[0], fmt.Sprintf("failure %d", maxRecentLines+4)) {
		t.Errorf("Expected newest failure first, got %q", summary.recentErrors[0])
	}
}

func TestTailLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.log")

	var sb strings.Builder
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		t.Fatal(err)
	}

	lines, err := tailLines(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 10 {
		t.Fatalf("Expected 10 lines, got %d", len(lines))
	}
	if lines[0] != "line 90" || lines[9] != "line 99" {
		t.Errorf("Wrong tail: first %q last %q", lines[0], lines[9])
	}

	// Whole file when under the cap
	all, err := tailLines(path, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 100 {
		t.Errorf("Expected 100 lines, got %d", len(all))
	}
}

func TestLineTime(t *testing.T) {
	fallback := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	ts := "2024-06-01T10:30:00Z"
	parsed := lineTime(ts+" [info] hello", fallback)
	if parsed.Format(time.RFC3339) != ts {
		t.Errorf("Parsed %v, want %s", parsed, ts)
	}

	// Bracketed timestamps parse too
	parsed = lineTime("["+ts+"] [info] hello", fallback)
	if parsed.Format(time.RFC3339) != ts {
		t.Errorf("Parsed %v, want %s", parsed, ts)
	}

	if got := lineTime("no timestamp here", fallback); !got.Equal(fallback) {
		t.Errorf("Expected fallback, got %v", got)
	}
	if got := lineTime("", fallback); !got.Equal(fallback) {
		t.Errorf("Expected fallback for empty line, got %v", got)
	}
}
