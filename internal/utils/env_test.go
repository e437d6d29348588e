package utils

import "testing"

func TestGetEnv(t *testing.T) {
	t.Setenv("UPLINE_TEST_STR", "value")

	if got := GetEnv("UPLINE_TEST_STR", "fallback", nil); got != "value" {
		t.Fatalf("GetEnv = %q, want value", got)
	}
	if got := GetEnv("UPLINE_TEST_STR_MISSING", "fallback", nil); got != "fallback" {
		t.Fatalf("GetEnv default = %q, want fallback", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("UPLINE_TEST_INT", "42")
	t.Setenv("UPLINE_TEST_NOT_INT", "ten")

	if got := GetEnvAsInt("UPLINE_TEST_INT", 7, nil); got != 42 {
		t.Fatalf("GetEnvAsInt = %d, want 42", got)
	}
	if got := GetEnvAsInt("UPLINE_TEST_INT_MISSING", 7, nil); got != 7 {
		t.Fatalf("GetEnvAsInt default = %d, want 7", got)
	}
	// A malformed value falls back rather than failing startup.
	if got := GetEnvAsInt("UPLINE_TEST_NOT_INT", 7, nil); got != 7 {
		t.Fatalf("GetEnvAsInt malformed = %d, want 7", got)
	}
}
