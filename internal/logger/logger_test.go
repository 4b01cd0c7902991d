package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name      string
		json      bool
		debug     bool
		wantDebug bool
	}{
		{name: "console info", json: false, debug: false, wantDebug: false},
		{name: "json debug", json: true, debug: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.json, tt.debug)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := l.Core().Enabled(zap.DebugLevel); got != tt.wantDebug {
				t.Fatalf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if !l.Core().Enabled(zap.InfoLevel) {
				t.Fatal("info must always be enabled")
			}
		})
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("expected a no-op logger")
	}
	l := zap.NewExample()
	if OrNop(l) != l {
		t.Fatal("expected the same logger back")
	}
}
