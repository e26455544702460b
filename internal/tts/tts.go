// Package tts synthesizes reply text into speakable audio.
package tts

import (
	"context"
	"errors"
)

// ErrSynthesis marks a text-to-speech provider failure.
var ErrSynthesis = errors.New("tts: provider failure")

// MaxTextLength is the longest input accepted by a synthesis request.
// Longer text is truncated, not rejected; a phone reply should never be
// anywhere near this long.
const MaxTextLength = 4096

// Options tune a synthesis request.
type Options struct {
	// Emotion tags the delivery style (friendly, empathetic, patient...).
	// Providers without native emotion control approximate it through
	// pacing adjustments.
	Emotion string

	// Voice selects the voice profile; empty uses the provider default.
	Voice string

	// Speed is the playback rate (0.25 to 4.0); zero uses the default.
	Speed float64
}

// Synthesizer is the speech-synthesis collaborator contract.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts Options) ([]byte, error)
}
