package wait

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// SplitLines splits s on "\r\n" or "\n" and drops empty lines.
func SplitLines(s string) []string {
	var lines []string
	for _, line := range lineBreak.Split(s, -1) {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// CountMarker returns how many lines of stdout and stderr together contain marker.
func CountMarker(stdout, stderr, marker string) int {
	count := 0
	for _, stream := range []string{stdout, stderr} {
		for _, line := range SplitLines(stream) {
			if strings.Contains(line, marker) {
				count++
			}
		}
	}
	return count
}

// LogMarkerReady re-reads the full logs of t and reports whether marker occurs exactly n times.
// Every other count, including more than n, is "not ready". Only a failed log fetch is an error.
func LogMarkerReady(ctx context.Context, t Target, marker string, n int) (bool, error) {
	stdout, stderr, err := t.Logs(ctx, false)
	if err != nil {
		return false, fmt.Errorf("failed to read container logs: %w", err)
	}
	return CountMarker(stdout, stderr, marker) == n, nil
}
