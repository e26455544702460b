package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAISynthesizer implements Synthesizer on the OpenAI TTS API.
//
// The API has no native emotion parameter, so emotion tags are
// approximated by adjusting pacing: empathetic and patient delivery
// slows slightly, happy speeds up slightly.
//
// Thread Safety: safe for concurrent use.
type OpenAISynthesizer struct {
	client *openai.Client
	model  openai.SpeechModel
	voice  openai.SpeechVoice
	speed  float64
}

// Config configures the OpenAI synthesizer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string  // default "tts-1-hd"
	Voice   string  // default "nova"
	Speed   float64 // default 0.9
}

// NewOpenAISynthesizer creates an OpenAI-backed synthesizer.
func NewOpenAISynthesizer(cfg Config) *OpenAISynthesizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := openai.SpeechModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.TTSModel1HD
	}
	voice := openai.SpeechVoice(cfg.Voice)
	if cfg.Voice == "" {
		voice = openai.VoiceNova
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = 0.9
	}

	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		voice:  voice,
		speed:  speed,
	}
}

// Synthesize renders text into MP3 audio bytes.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, opts Options) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrSynthesis)
	}
	if runes := []rune(text); len(runes) > MaxTextLength {
		text = string(runes[:MaxTextLength])
	}

	voice := s.voice
	if opts.Voice != "" {
		voice = openai.SpeechVoice(opts.Voice)
	}

	speed := s.speed
	if opts.Speed != 0 {
		speed = opts.Speed
	}
	speed = adjustSpeedForEmotion(speed, opts.Emotion)

	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio stream: %v", ErrSynthesis, err)
	}
	return audio, nil
}

// adjustSpeedForEmotion nudges pacing to suggest the tagged emotion,
// clamped to the API's accepted range.
func adjustSpeedForEmotion(speed float64, emotion string) float64 {
	switch emotion {
	case "empathetic", "patient", "apologetic":
		speed -= 0.05
	case "happy":
		speed += 0.05
	}
	if speed < 0.25 {
		speed = 0.25
	}
	if speed > 4.0 {
		speed = 4.0
	}
	return speed
}
