// ABOUTME: Unit tests for sync daemon mode
// ABOUTME: Tests interval parsing, direction selection, and relative time formatting
package cli

import (
	"testing"
	"time"

	"github.com/harperreed/crmbridge/models"
)

func TestParseDirections(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []models.Direction
	}{
		{
			name:     "all directions",
			input:    "all",
			expected: []models.Direction{models.DirectionPush, models.DirectionPull},
		},
		{
			name:     "single direction",
			input:    "pull",
			expected: []models.Direction{models.DirectionPull},
		},
		{
			name:     "order is kept",
			input:    "pull,push",
			expected: []models.Direction{models.DirectionPull, models.DirectionPush},
		},
		{
			name:     "spaces around commas",
			input:    "push, pull",
			expected: []models.Direction{models.DirectionPush, models.DirectionPull},
		},
		{
			name:     "invalid direction ignored",
			input:    "push,sideways",
			expected: []models.Direction{models.DirectionPush},
		},
		{
			name:     "duplicates collapse",
			input:    "push,push",
			expected: []models.Direction{models.DirectionPush},
		},
		{
			name:     "all invalid directions",
			input:    "up,down",
			expected: []models.Direction{},
		},
		{
			name:     "empty string",
			input:    "",
			expected: []models.Direction{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseDirections(tt.input)

			if len(result) != len(tt.expected) {
				t.Errorf("expected %d directions, got %d: %v", len(tt.expected), len(result), result)
				return
			}

			for i, d := range tt.expected {
				if result[i] != d {
					t.Errorf("expected direction[%d] = %s, got %s", i, d, result[i])
				}
			}
		})
	}
}

func TestIntervalValidation(t *testing.T) {
	tests := []struct {
		name        string
		interval    string
		shouldParse bool
		minValid    bool
	}{
		{name: "valid 1 hour", interval: "1h", shouldParse: true, minValid: true},
		{name: "valid 15 minutes", interval: "15m", shouldParse: true, minValid: true},
		{name: "valid 5 minutes (minimum)", interval: "5m", shouldParse: true, minValid: true},
		{name: "invalid 4 minutes (below minimum)", interval: "4m", shouldParse: true, minValid: false},
		{name: "invalid 30 seconds", interval: "30s", shouldParse: true, minValid: false},
		{name: "invalid format", interval: "often", shouldParse: false},
		{name: "empty string", interval: "", shouldParse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			duration, err := time.ParseDuration(tt.interval)

			if !tt.shouldParse {
				if err == nil {
					t.Errorf("expected interval to fail parsing, but it succeeded: %s", duration)
				}
				return
			}
			if err != nil {
				t.Errorf("expected interval to parse, got error: %v", err)
				return
			}

			isValid := duration >= MinDaemonInterval
			if isValid != tt.minValid {
				t.Errorf("expected minimum validation = %v, got %v (duration: %s)", tt.minValid, isValid, duration)
			}
		})
	}
}

func TestDaemonCommandRejectsShortInterval(t *testing.T) {
	b := newTestBridge(t)
	err := SyncDaemonCommand(b.Bridge, []string{"--interval", "1m"})
	if err == nil {
		t.Fatal("expected an error for a 1m interval")
	}

	err = SyncDaemonCommand(b.Bridge, []string{"--interval", "10m", "--direction", "sideways"})
	if err == nil {
		t.Fatal("expected an error when no direction is valid")
	}
}

func TestFormatTimeSince(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		time     time.Time
		expected string
	}{
		{name: "just now (30 seconds)", time: now.Add(-30 * time.Second), expected: "just now"},
		{name: "1 minute ago", time: now.Add(-1 * time.Minute), expected: "1 minute ago"},
		{name: "5 minutes ago", time: now.Add(-5 * time.Minute), expected: "5 minutes ago"},
		{name: "1 hour ago", time: now.Add(-1 * time.Hour), expected: "1 hour ago"},
		{name: "3 hours ago", time: now.Add(-3 * time.Hour), expected: "3 hours ago"},
		{name: "1 day ago", time: now.Add(-24 * time.Hour), expected: "1 day ago"},
		{name: "5 days ago", time: now.Add(-5 * 24 * time.Hour), expected: "5 days ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatTimeSince(tt.time)
			if result != tt.expected {
				t.Errorf("expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}
