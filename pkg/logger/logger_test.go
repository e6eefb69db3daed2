package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantLevel zerolog.Level
	}{
		{
			name:      "debug level",
			opts:      Options{Level: "debug", Format: "json", Env: "development"},
			wantLevel: zerolog.DebugLevel,
		},
		{
			name:      "info level",
			opts:      Options{Level: "info", Format: "json"},
			wantLevel: zerolog.InfoLevel,
		},
		{
			name:      "warn level",
			opts:      Options{Level: "warn", Format: "console"},
			wantLevel: zerolog.WarnLevel,
		},
		{
			name:      "unknown level falls back to info",
			opts:      Options{Level: "loud", Format: "json"},
			wantLevel: zerolog.InfoLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.opts)
			if l == nil {
				t.Fatal("expected logger to be created")
			}
			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("expected global level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNamedAndFields(t *testing.T) {
	base := Nop()

	named := base.Named("analyzer")
	if named == base {
		t.Error("Named should return a new logger")
	}

	withFields := base.WithFields(map[string]interface{}{"code": "600519", "score": 82.5})
	if withFields == base {
		t.Error("WithFields should return a new logger")
	}
}
