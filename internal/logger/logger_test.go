package logger

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New("debug", format)
		if err != nil {
			t.Fatalf("format %s: %v", format, err)
		}
		if !log.Core().Enabled(-1) {
			t.Errorf("format %s: debug should be enabled", format)
		}
	}

	log, err := New("warn", "json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(0) {
		t.Error("info must be disabled at warn level")
	}

	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}
