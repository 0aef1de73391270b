package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("CV_HOST", "crane.lab")
	t.Setenv("CV_PORT", "9000")
	t.Setenv("CV_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set var", "endpoint: ${CV_HOST}", "endpoint: crane.lab"},
		{"unset var", "endpoint: ${CV_UNSET_12345}", "endpoint: "},
		{"default when unset", "fps: ${CV_UNSET_12345:-30}", "fps: 30"},
		{"default ignored when set", "port: ${CV_PORT:-8000}", "port: 9000"},
		{"default when empty", "x: ${CV_EMPTY:-fallback}", "x: fallback"},
		{"several", "ws://${CV_HOST}:${CV_PORT}/robotcrane", "ws://crane.lab:9000/robotcrane"},
		{"no vars", "nothing to expand", "nothing to expand"},
		{"bare dollar untouched", "cost: $5", "cost: $5"},
		{
			"nested yaml",
			"adapter:\n  headers:\n    Authorization: Bearer ${CV_PORT}",
			"adapter:\n  headers:\n    Authorization: Bearer 9000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
