package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestToZapLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{DebugLevel, zapcore.DebugLevel},
		{InfoLevel, zapcore.InfoLevel},
		{WarnLevel, zapcore.WarnLevel},
		{ErrorLevel, zapcore.ErrorLevel},
		{"verbose", defaultZapLevel},
		{"", defaultZapLevel},
	}
	for _, tt := range tests {
		if got := toZapLevel(tt.in); got != tt.want {
			t.Errorf("toZapLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	log := New(WarnLevel, JSONFormat)
	if log.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled on a warn logger")
	}
	if !log.Desugar().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("error disabled on a warn logger")
	}
}

func TestNamed_KeepsWrapper(t *testing.T) {
	log := NewNop().Named("timer")
	if log == nil || log.SugaredLogger == nil {
		t.Fatal("Named() returned empty logger")
	}
	log.Infow("tick", "elapsed", "00:01")
}
