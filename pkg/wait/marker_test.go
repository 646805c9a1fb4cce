package wait

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marker = "Waiting for connections"

// fakeTarget serves canned logs and records how often they were read.
type fakeTarget struct {
	mu       sync.Mutex
	stdout   string
	stderr   string
	logErr   error
	endpoint string
	portErr  error
	reads    int
}

func (f *fakeTarget) Logs(ctx context.Context, timestamps bool) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if timestamps {
		return "", "", errors.New("timestamps must not be requested")
	}
	return f.stdout, f.stderr, f.logErr
}

func (f *fakeTarget) Endpoint(ctx context.Context, port string) (string, error) {
	if f.portErr != nil {
		return "", f.portErr
	}
	return f.endpoint, nil
}

func (f *fakeTarget) setLogs(stdout, stderr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stdout, f.stderr = stdout, stderr
}

func mongoLine(msg string) string {
	return `{"t":{"$date":"2024-01-01T00:00:00.000+00:00"},"s":"I","c":"NETWORK","msg":"` + msg + `"}`
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "lf", in: "a\nb\n", want: []string{"a", "b"}},
		{name: "crlf", in: "a\r\nb\r\n", want: []string{"a", "b"}},
		{name: "mixed", in: "a\r\nb\nc", want: []string{"a", "b", "c"}},
		{name: "blank lines dropped", in: "\n\na\r\n\r\n\nb\n\n", want: []string{"a", "b"}},
		{name: "lone carriage return kept in line", in: "a\rb\n", want: []string{"a\rb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.in))
		})
	}
}

func TestCountMarker(t *testing.T) {
	line := mongoLine(marker)
	other := mongoLine("Build Info")

	tests := []struct {
		name   string
		stdout string
		stderr string
		want   int
	}{
		{name: "no output", want: 0},
		{name: "marker absent", stdout: other + "\n" + other + "\n", want: 0},
		{name: "once in stdout", stdout: other + "\n" + line + "\n", want: 1},
		{name: "once in each stream", stdout: line + "\n", stderr: line + "\n", want: 2},
		{name: "twice in stdout", stdout: line + "\n" + other + "\n" + line + "\n", want: 2},
		{name: "three times", stdout: line + "\n" + line + "\n", stderr: line, want: 3},
		{name: "bare marker line", stdout: marker, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountMarker(tt.stdout, tt.stderr, marker))
		})
	}
}

func TestCountMarker_LineEndingsAgree(t *testing.T) {
	lines := []string{mongoLine("Build Info"), mongoLine(marker), mongoLine("Listening on"), mongoLine(marker)}

	lf := strings.Join(lines, "\n") + "\n"
	crlf := strings.Join(lines, "\r\n") + "\r\n"

	assert.Equal(t, 2, CountMarker(lf, "", marker))
	assert.Equal(t, CountMarker(lf, "", marker), CountMarker(crlf, "", marker))
	assert.Equal(t, CountMarker("", lf, marker), CountMarker("", crlf, marker))
}

func TestLogMarkerReady(t *testing.T) {
	line := mongoLine(marker) + "\n"

	tests := []struct {
		name   string
		stdout string
		stderr string
		want   bool
	}{
		{name: "zero occurrences", stdout: mongoLine("starting") + "\n", want: false},
		{name: "one occurrence", stdout: line, want: false},
		{name: "two occurrences split across streams", stdout: line, stderr: line, want: true},
		{name: "two occurrences in stdout", stdout: line + line, want: true},
		{name: "three occurrences", stdout: line + line + line, want: false},
		{name: "four occurrences", stdout: line + line, stderr: line + line, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &fakeTarget{stdout: tt.stdout, stderr: tt.stderr}
			ready, err := LogMarkerReady(context.Background(), target, marker, 2)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ready)
		})
	}
}

func TestLogMarkerReady_IdempotentRepoll(t *testing.T) {
	target := &fakeTarget{stdout: mongoLine(marker) + "\n", stderr: mongoLine(marker) + "\n"}

	first, err := LogMarkerReady(context.Background(), target, marker, 2)
	require.NoError(t, err)
	second, err := LogMarkerReady(context.Background(), target, marker, 2)
	require.NoError(t, err)

	assert.True(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, target.reads, "each attempt re-reads the full logs")
}

func TestLogMarkerReady_LogFetchFailure(t *testing.T) {
	target := &fakeTarget{logErr: errors.New("connection reset")}

	ready, err := LogMarkerReady(context.Background(), target, marker, 2)
	assert.False(t, ready)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
