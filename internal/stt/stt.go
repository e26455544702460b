// Package stt transcribes caller audio to text.
package stt

import (
	"context"
	"errors"
)

// ErrTranscription marks a speech-to-text provider failure.
var ErrTranscription = errors.New("stt: provider failure")

// Options tune a transcription request.
type Options struct {
	// Language is an ISO-639-1 hint (e.g. "en"). Optional.
	Language string

	// Prompt guides the model toward expected vocabulary, typically the
	// campaign script. Optional.
	Prompt string
}

// Result is one completed transcription.
type Result struct {
	Text       string
	Confidence float64
	Language   string
	Duration   float64 // seconds of audio
}

// Transcriber is the speech-to-text collaborator contract.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error)
}
