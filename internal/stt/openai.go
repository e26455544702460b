package stt

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITranscriber implements Transcriber on the OpenAI Whisper API.
//
// Thread Safety: safe for concurrent use; each call is an independent
// API request.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

// Config configures the Whisper transcriber.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string // default "whisper-1"
}

// NewOpenAITranscriber creates a Whisper-backed transcriber.
func NewOpenAITranscriber(cfg Config) *OpenAITranscriber {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

// Transcribe sends audio to Whisper and extracts text plus a confidence
// estimate from the segment log-probabilities.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte, opts Options) (*Result, error) {
	if len(audio) == 0 {
		return &Result{}, nil
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       t.model,
		Reader:      bytes.NewReader(audio),
		FilePath:    "caller-audio.wav",
		Language:    opts.Language,
		Prompt:      opts.Prompt,
		Format:      openai.AudioResponseFormatVerboseJSON,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	return &Result{
		Text:       strings.TrimSpace(resp.Text),
		Confidence: confidenceFromSegments(resp),
		Language:   resp.Language,
		Duration:   resp.Duration,
	}, nil
}

// confidenceFromSegments converts Whisper segment average log
// probabilities into a 0..1 confidence score. Segments that Whisper
// itself flags as probable silence are excluded.
func confidenceFromSegments(resp openai.AudioResponse) float64 {
	if len(resp.Segments) == 0 {
		if strings.TrimSpace(resp.Text) == "" {
			return 0
		}
		return 0.9
	}

	var sum float64
	var counted int
	for _, seg := range resp.Segments {
		if seg.NoSpeechProb > 0.8 {
			continue
		}
		sum += math.Exp(seg.AvgLogprob)
		counted++
	}
	if counted == 0 {
		return 0
	}

	confidence := sum / float64(counted)
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
