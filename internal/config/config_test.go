package config

import (
	"testing"
	"time"
)

func TestParseExts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"defaults", ".zip,.7z,.rar", []string{".zip", ".7z", ".rar"}},
		{"missing dots", "zip, 7z", []string{".zip", ".7z"}},
		{"mixed case", ".ZIP,.Rar", []string{".zip", ".rar"}},
		{"empty entries", ".zip,,", []string{".zip"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExts(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d extensions, want %d: %v", len(got), len(tt.want), got)
			}
			for _, ext := range tt.want {
				if !got[ext] {
					t.Errorf("missing extension %q in %v", ext, got)
				}
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("ROMDOCK_TEST_STR", "value")
	t.Setenv("ROMDOCK_TEST_INT", "42")
	t.Setenv("ROMDOCK_TEST_FLOAT", "0.55")
	t.Setenv("ROMDOCK_TEST_DUR", "250ms")
	t.Setenv("ROMDOCK_TEST_BAD_INT", "nope")

	if got := GetEnv("ROMDOCK_TEST_STR", "fallback"); got != "value" {
		t.Errorf("GetEnv = %q, want value", got)
	}
	if got := GetEnv("ROMDOCK_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("GetEnv missing = %q, want fallback", got)
	}
	if got := GetIntEnv("ROMDOCK_TEST_INT", 1); got != 42 {
		t.Errorf("GetIntEnv = %d, want 42", got)
	}
	if got := GetIntEnv("ROMDOCK_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("GetIntEnv bad = %d, want default 7", got)
	}
	if got := GetFloatEnv("ROMDOCK_TEST_FLOAT", 0.7); got != 0.55 {
		t.Errorf("GetFloatEnv = %v, want 0.55", got)
	}
	if got := GetDurationEnv("ROMDOCK_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Errorf("GetDurationEnv = %v, want 250ms", got)
	}
}

func TestJobScratchDirIsolation(t *testing.T) {
	t.Parallel()
	cfg := &ServiceConfig{ScratchDir: "/scratch"}
	a := cfg.JobScratchDir("job-a")
	b := cfg.JobScratchDir("job-b")
	if a == b {
		t.Fatalf("scratch dirs for distinct jobs must differ, both %q", a)
	}
}
