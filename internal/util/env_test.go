package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		defaultVal bool
		want       bool
	}{
		{"unset uses default true", "", true, true},
		{"unset uses default false", "", false, false},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes", "yes", false, true},
		{"on", "on", false, true},
		{"uppercase TRUE", "TRUE", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"no", "no", true, false},
		{"off", "off", true, false},
		{"garbage uses default", "banana", true, true},
		{"whitespace trimmed", "  true  ", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_ENV", tt.value)
			if got := ParseBoolEnv("TEST_BOOL_ENV", tt.defaultVal); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultVal, got, tt.want)
			}
		})
	}
}

func TestGetenvDefault(t *testing.T) {
	t.Setenv("TEST_GETENV_DEFAULT", "")
	if got := GetenvDefault("TEST_GETENV_DEFAULT", "fallback"); got != "fallback" {
		t.Errorf("empty var: got %q, want fallback", got)
	}

	t.Setenv("TEST_GETENV_DEFAULT", "actual")
	if got := GetenvDefault("TEST_GETENV_DEFAULT", "fallback"); got != "actual" {
		t.Errorf("set var: got %q, want actual", got)
	}
}
