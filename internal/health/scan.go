package health

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// DefaultScanWindow bounds how far back log evidence counts.
	DefaultScanWindow = time.Hour

	// DefaultMaxLines caps the total lines examined per check so a huge
	// log file cannot stall a health check.
	DefaultMaxLines = 8000

	// maxRecentLines caps the RecentErrors/RecentWarnings lists.
	maxRecentLines = 10
)

var (
	errorPattern = regexp.MustCompile(`(?i)\[(error|err|fatal)\]|\b(error|fatal|panic)\b`)
	warnPattern  = regexp.MustCompile(`(?i)\[(warn|warning)\]|\bwarn(ing)?\b`)
)

// scanSummary is the raw evidence gathered for one server.
type scanSummary struct {
	lastSeen     *time.Time
	errorCount   int
	warningCount int

	// recentErrors and recentWarnings are most-recent-first, capped.
	recentErrors   []string
	recentWarnings []string
}

func (s *scanSummary) matched() bool {
	return s.lastSeen != nil
}

// scanLogs reads recent log files under logDir and collects lines that
// mention name. Name matching is a substring check against unstructured
// text, so it is heuristic: it can over-match when one server's name is
// contained in another's.
func scanLogs(logDir, name string, window time.Duration, maxLines int) (*scanSummary, error) {
	if window <= 0 {
		window = DefaultScanWindow
	}
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	cutoff := time.Now().Add(-window)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read log directory: %w", err)
	}

	type logFile struct {
		path  string
		mtime time.Time
	}
	var files []logFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		// Files untouched since before the window cannot contribute
		if info.ModTime().Before(cutoff) {
			continue
		}
		files = append(files, logFile{path: filepath.Join(logDir, entry.Name()), mtime: info.ModTime()})
	}

	// Oldest file first so matched lines accumulate in time order
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })

	summary := &scanSummary{}
	budget := maxLines

	var errLines, warnLines []string
	for _, file := range files {
		if budget <= 0 {
			break
		}
		lines, err := tailLines(file.path, budget)
		if err != nil {
			continue
		}
		budget -= len(lines)

		for _, line := range lines {
			if !strings.Contains(line, name) {
				continue
			}

			seen := lineTime(line, file.mtime)
			if seen.Before(cutoff) {
				continue
			}
			if summary.lastSeen == nil || seen.After(*summary.lastSeen) {
				t := seen
				summary.lastSeen = &t
			}

			switch {
			case errorPattern.MatchString(line):
				summary.errorCount++
				errLines = append(errLines, line)
			case warnPattern.MatchString(line):
				summary.warningCount++
				warnLines = append(warnLines, line)
			}
		}
	}

	summary.recentErrors = newestFirst(errLines, maxRecentLines)
	summary.recentWarnings = newestFirst(warnLines, maxRecentLines)
	return summary, nil
}

// tailLines returns up to max lines from the end of the file.
func tailLines(path string, max int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, max)
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring[count%max] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if count <= max {
		return ring[:count], nil
	}
	out := make([]string, 0, max)
	for i := count - max; i < count; i++ {
		out = append(out, ring[i%max])
	}
	return out, nil
}

// lineTime extracts a leading timestamp from a log line, falling back to
// the file's modification time when the line carries none we recognize.
func lineTime(line string, fallback time.Time) time.Time {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fallback
	}
	token := strings.Trim(fields[0], "[]")
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, token); err == nil {
			return t
		}
	}
	return fallback
}

// newestFirst reverses lines (which arrive oldest first) and caps them.
func newestFirst(lines []string, max int) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, 0, max)
	for i := len(lines) - 1; i >= 0 && len(out) < max; i-- {
		out = append(out, lines[i])
	}
	return out
}
