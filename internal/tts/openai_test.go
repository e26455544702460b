package tts

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	s := NewOpenAISynthesizer(Config{APIKey: "test-key"})

	_, err := s.Synthesize(context.Background(), "   ", Options{})
	if !errors.Is(err, ErrSynthesis) {
		t.Fatalf("expected ErrSynthesis for empty text, got %v", err)
	}
}

func TestAdjustSpeedForEmotion(t *testing.T) {
	tests := []struct {
		emotion string
		in      float64
		want    float64
	}{
		{"empathetic", 0.9, 0.85},
		{"patient", 0.9, 0.85},
		{"apologetic", 0.9, 0.85},
		{"happy", 0.9, 0.95},
		{"neutral", 0.9, 0.9},
		{"friendly", 0.9, 0.9},
		{"empathetic", 0.25, 0.25}, // clamped at the floor
		{"happy", 4.0, 4.0},        // clamped at the ceiling
	}

	for _, tt := range tests {
		got := adjustSpeedForEmotion(tt.in, tt.emotion)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("adjustSpeedForEmotion(%f, %q) = %f, want %f", tt.in, tt.emotion, got, tt.want)
		}
	}
}
