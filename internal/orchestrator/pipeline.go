package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voxflow-ai/voxflow/internal/dialogue"
	"github.com/voxflow-ai/voxflow/internal/observability"
	"github.com/voxflow-ai/voxflow/internal/stt"
	"github.com/voxflow-ai/voxflow/internal/tts"
)

// Pipeline stage names, used as the provider error metric label and in
// wrapped errors.
const (
	StageTranscribe = "transcribe"
	StageClassify   = "classify"
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
	StageSummarize  = "summarize"
	StagePersist    = "persist"
)

// StageError wraps a provider failure with the pipeline stage it
// occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("orchestrator: %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TurnResult is the outcome of one full turn pipeline run.
type TurnResult struct {
	// NoSpeech is set when transcription produced no usable text; the
	// remaining stages were skipped and all other fields are zero.
	NoSpeech bool

	Transcript string
	Confidence float64
	Analysis   *dialogue.Analysis
	ReplyText  string
	Emotion    string
	Audio      []byte
}

// Pipeline chains the per-turn provider calls: transcribe caller
// audio, classify the utterance, generate a reply, synthesize speech.
// It is stateless; all conversation state lives on the session and is
// passed in per call.
type Pipeline struct {
	transcriber stt.Transcriber
	dialog      dialogue.Provider
	synth       tts.Synthesizer

	logger  *observability.Logger
	metrics *observability.Metrics

	voice string
	speed float64
}

// PipelineConfig wires the pipeline's collaborators.
type PipelineConfig struct {
	Transcriber stt.Transcriber
	Dialogue    dialogue.Provider
	Synthesizer tts.Synthesizer
	Logger      *observability.Logger
	Metrics     *observability.Metrics

	// Voice and Speed are the synthesis defaults for every reply.
	Voice string
	Speed float64
}

// NewPipeline creates a turn pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		transcriber: cfg.Transcriber,
		dialog:      cfg.Dialogue,
		synth:       cfg.Synthesizer,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		voice:       cfg.Voice,
		speed:       cfg.Speed,
	}
}

func (p *Pipeline) stageErr(stage string, err error) error {
	p.metrics.ProviderErrors.WithLabelValues(stage).Inc()
	return &StageError{Stage: stage, Err: err}
}

// RunTurn executes the full turn pipeline for one utterance. An empty
// transcript short-circuits after the transcribe stage with
// NoSpeech=true and no error. Any provider failure aborts the turn;
// partial results are discarded.
func (p *Pipeline) RunTurn(ctx context.Context, audio []byte, history []dialogue.Message, callCtx dialogue.Context) (*TurnResult, error) {
	start := time.Now()

	tr, err := p.transcriber.Transcribe(ctx, audio, stt.Options{Prompt: callCtx.Script})
	if err != nil {
		return nil, p.stageErr(StageTranscribe, err)
	}
	if strings.TrimSpace(tr.Text) == "" {
		p.logger.Debug(ctx, "no speech detected in audio segment")
		return &TurnResult{NoSpeech: true}, nil
	}

	analysis, err := p.dialog.ClassifyIntent(ctx, tr.Text, history)
	if err != nil {
		return nil, p.stageErr(StageClassify, err)
	}

	reply, err := p.dialog.GenerateReply(ctx, history, analysis, callCtx)
	if err != nil {
		return nil, p.stageErr(StageGenerate, err)
	}

	emotion := dialogue.EmotionFor(analysis.Intent, analysis.Sentiment)
	audioOut, err := p.synthesize(ctx, reply.Text, emotion)
	if err != nil {
		return nil, err
	}

	p.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug(ctx, "turn pipeline completed",
		"intent", string(analysis.Intent),
		"sentiment", string(analysis.Sentiment),
		"emotion", emotion,
		"elapsed", time.Since(start).String(),
	)

	return &TurnResult{
		Transcript: tr.Text,
		Confidence: tr.Confidence,
		Analysis:   analysis,
		ReplyText:  reply.Text,
		Emotion:    emotion,
		Audio:      audioOut,
	}, nil
}

// Greet generates and synthesizes the opening line. A dialogue failure
// falls back to the stock greeting rather than failing the answer; a
// synthesis failure is returned for the caller's recovery policy.
func (p *Pipeline) Greet(ctx context.Context, callCtx dialogue.Context) (*TurnResult, error) {
	text := dialogue.FallbackGreeting
	if reply, err := p.dialog.Greeting(ctx, callCtx); err != nil {
		p.metrics.ProviderErrors.WithLabelValues(StageGenerate).Inc()
		p.logger.Warn(ctx, "greeting generation failed, using fallback", "error", err)
	} else {
		text = reply.Text
	}

	audio, err := p.synthesize(ctx, text, "friendly")
	if err != nil {
		return nil, err
	}
	return &TurnResult{ReplyText: text, Emotion: "friendly", Audio: audio}, nil
}

// Farewell generates and synthesizes the sign-off line for a
// terminating call. Failures degrade to text-only output: the carrier
// can still speak the fallback via TwiML.
func (p *Pipeline) Farewell(ctx context.Context, callCtx dialogue.Context, reason string) *TurnResult {
	text := dialogue.FallbackClosing
	if reply, err := p.dialog.Closing(ctx, callCtx, reason); err != nil {
		p.metrics.ProviderErrors.WithLabelValues(StageGenerate).Inc()
		p.logger.Warn(ctx, "closing generation failed, using fallback", "error", err)
	} else {
		text = reply.Text
	}

	audio, err := p.synthesize(ctx, text, "friendly")
	if err != nil {
		p.logger.Warn(ctx, "closing synthesis failed, sending text only", "error", err)
		return &TurnResult{ReplyText: text, Emotion: "friendly"}
	}
	return &TurnResult{ReplyText: text, Emotion: "friendly", Audio: audio}
}

// Recovery synthesizes the recovery prompt played after a transient
// pipeline failure.
func (p *Pipeline) Recovery(ctx context.Context) *TurnResult {
	text := dialogue.RecoveryPrompt
	audio, err := p.synthesize(ctx, text, "apologetic")
	if err != nil {
		p.logger.Warn(ctx, "recovery synthesis failed, sending text only", "error", err)
		return &TurnResult{ReplyText: text, Emotion: "apologetic"}
	}
	return &TurnResult{ReplyText: text, Emotion: "apologetic", Audio: audio}
}

// Summarize condenses the conversation for the completed call record.
// Never fails: a provider error degrades to a neutral placeholder so
// termination can always finish.
func (p *Pipeline) Summarize(ctx context.Context, history []dialogue.Message) *dialogue.Summary {
	if len(history) == 0 {
		return &dialogue.Summary{Outcome: "unsuccessful", Sentiment: dialogue.SentimentNeutral, Notes: "no conversation took place"}
	}
	summary, err := p.dialog.Summarize(ctx, history)
	if err != nil {
		p.metrics.ProviderErrors.WithLabelValues(StageSummarize).Inc()
		p.logger.Warn(ctx, "call summarization failed, recording placeholder", "error", err)
		return &dialogue.Summary{Outcome: "partial", Sentiment: dialogue.SentimentNeutral, Notes: "summary unavailable"}
	}
	return summary
}

func (p *Pipeline) synthesize(ctx context.Context, text, emotion string) ([]byte, error) {
	audio, err := p.synth.Synthesize(ctx, text, tts.Options{
		Emotion: emotion,
		Voice:   p.voice,
		Speed:   p.speed,
	})
	if err != nil {
		return nil, p.stageErr(StageSynthesize, err)
	}
	return audio, nil
}
