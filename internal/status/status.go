// Package status parses voxvault log files for status display.
package status

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
)

// Stats holds parsed statistics from one day's log file.
type Stats struct {
	SyncRuns int
	Inserted int
	Updated  int
	Removed  int
	Errors   int
	LastSync *time.Time
}

// Log line shape:
// 2026-08-31T10:12:03Z INFO  [reconcile] sync complete inserted=2 updated=1 removed=0
var (
	syncPattern  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z)\s+INFO\s+\[reconcile\]\s+sync complete\s+inserted=(\d+)\s+updated=(\d+)\s+removed=(\d+)`)
	errorPattern = regexp.MustCompile(`\s+ERROR\s+`)
)

// TodayLogPath returns the path of today's log file in logDir.
func TodayLogPath(logDir string) string {
	today := time.Now().UTC().Format("2006-01-02")
	return filepath.Join(logDir, "voxvault-"+today+".log")
}

// ParseToday parses today's log file in logDir. A missing file yields empty
// stats, not an error.
func ParseToday(logDir string) (*Stats, error) {
	return ParseLogFile(TodayLogPath(logDir))
}

// ParseLogFile parses one log file into Stats.
func ParseLogFile(path string) (*Stats, error) {
	stats := &Stats{}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		if m := syncPattern.FindStringSubmatch(line); m != nil {
			stats.SyncRuns++
			stats.Inserted += mustInt(m[2])
			stats.Updated += mustInt(m[3])
			stats.Removed += mustInt(m[4])
			if ts, err := time.Parse(time.RFC3339, m[1]); err == nil {
				stats.LastSync = &ts
			}
		}
		if errorPattern.MatchString(line) {
			stats.Errors++
		}
	}
	return stats, scanner.Err()
}

// FormatTimestamp renders a timestamp for display in local time.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02T15:04:05")
}

func mustInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
