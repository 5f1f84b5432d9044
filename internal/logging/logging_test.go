package logging

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := New("debug", format)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !logger.Core().Enabled(-1) {
			t.Fatalf("%s: debug should be enabled", format)
		}
	}
	if _, err := New("loud", "json"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
