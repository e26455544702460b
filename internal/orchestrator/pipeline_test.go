package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/voxflow-ai/voxflow/internal/dialogue"
	"github.com/voxflow-ai/voxflow/internal/observability"
)

func newTestPipeline(tr *fakeTranscriber, d *fakeDialogue, sy *fakeSynth) *Pipeline {
	return NewPipeline(PipelineConfig{
		Transcriber: tr,
		Dialogue:    d,
		Synthesizer: sy,
		Logger:      observability.NewNopLogger(),
		Metrics:     observability.NewNopMetrics(),
		Voice:       "nova",
		Speed:       0.9,
	})
}

func TestRunTurnShortCircuitsOnEmptyTranscript(t *testing.T) {
	d := &fakeDialogue{classifyErr: errors.New("must not be called")}
	p := newTestPipeline(&fakeTranscriber{text: ""}, d, &fakeSynth{})

	result, err := p.RunTurn(context.Background(), []byte("silence"), nil, dialogue.Context{})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if !result.NoSpeech {
		t.Error("expected NoSpeech for empty transcript")
	}
	if result.ReplyText != "" || result.Audio != nil {
		t.Errorf("short-circuited turn must carry no reply: %+v", result)
	}
}

func TestRunTurnWrapsStageErrors(t *testing.T) {
	cause := errors.New("upstream 500")

	tests := []struct {
		name  string
		setup func(*fakeTranscriber, *fakeDialogue, *fakeSynth)
		stage string
	}{
		{"transcribe", func(tr *fakeTranscriber, d *fakeDialogue, sy *fakeSynth) { tr.err = cause }, StageTranscribe},
		{"classify", func(tr *fakeTranscriber, d *fakeDialogue, sy *fakeSynth) { d.classifyErr = cause }, StageClassify},
		{"generate", func(tr *fakeTranscriber, d *fakeDialogue, sy *fakeSynth) { d.generateErr = cause }, StageGenerate},
		{"synthesize", func(tr *fakeTranscriber, d *fakeDialogue, sy *fakeSynth) { sy.err = cause }, StageSynthesize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranscriber{text: "hello", confidence: 0.9}
			d := &fakeDialogue{
				analysis: &dialogue.Analysis{Intent: dialogue.IntentGreeting, Sentiment: dialogue.SentimentNeutral},
				reply:    "hi",
			}
			sy := &fakeSynth{}
			tt.setup(tr, d, sy)

			_, err := newTestPipeline(tr, d, sy).RunTurn(context.Background(), []byte("pcm"), nil, dialogue.Context{})
			if err == nil {
				t.Fatal("expected error")
			}
			var stageErr *StageError
			if !errors.As(err, &stageErr) {
				t.Fatalf("expected StageError, got %T", err)
			}
			if stageErr.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", stageErr.Stage, tt.stage)
			}
			if !errors.Is(err, cause) {
				t.Error("cause not preserved through wrapping")
			}
		})
	}
}

func TestRunTurnAppliesEmotionMapping(t *testing.T) {
	tr := &fakeTranscriber{text: "this is unacceptable", confidence: 0.9}
	d := &fakeDialogue{
		analysis: &dialogue.Analysis{Intent: dialogue.IntentComplaint, Sentiment: dialogue.SentimentNegative},
		reply:    "I'm sorry to hear that.",
	}
	p := newTestPipeline(tr, d, &fakeSynth{})

	result, err := p.RunTurn(context.Background(), []byte("pcm"), nil, dialogue.Context{})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if result.Emotion != "empathetic" {
		t.Errorf("emotion = %q, want empathetic", result.Emotion)
	}
}

func TestSummarizeFallsBackOnFailure(t *testing.T) {
	d := &fakeDialogue{}
	p := newTestPipeline(&fakeTranscriber{}, d, &fakeSynth{})

	history := []dialogue.Message{{Role: "user", Content: "hi"}}

	summary := p.Summarize(context.Background(), history)
	if summary.Outcome != "successful" {
		t.Errorf("outcome = %q", summary.Outcome)
	}

	d.summarizeErr = errors.New("upstream 500")
	if got := p.Summarize(context.Background(), history); got.Outcome != "partial" {
		t.Errorf("failed summarize outcome = %q, want partial", got.Outcome)
	}

	if got := p.Summarize(context.Background(), nil); got.Outcome != "unsuccessful" {
		t.Errorf("empty history outcome = %q, want unsuccessful", got.Outcome)
	}
}
