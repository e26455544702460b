package dialogue

import "testing"

func TestEmotionFor(t *testing.T) {
	tests := []struct {
		name      string
		intent    Intent
		sentiment Sentiment
		want      string
	}{
		{"complaint is empathetic", IntentComplaint, SentimentNegative, "empathetic"},
		{"compliment is happy", IntentCompliment, SentimentPositive, "happy"},
		{"unclear is patient", IntentUnclear, SentimentNeutral, "patient"},
		{"question is helpful", IntentQuestion, SentimentNeutral, "helpful"},
		{"negative sentiment escalates friendly", IntentGreeting, SentimentNegative, "empathetic"},
		{"positive sentiment escalates friendly", IntentGreeting, SentimentPositive, "happy"},
		{"positive sentiment escalates neutral", IntentTransferRequest, SentimentPositive, "happy"},
		{"unmapped intent is neutral", IntentHoldRequest, SentimentNeutral, "neutral"},
		{"sentiment does not override complaint", IntentComplaint, SentimentPositive, "empathetic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EmotionFor(tt.intent, tt.sentiment); got != tt.want {
				t.Errorf("EmotionFor(%s, %s) = %q, want %q", tt.intent, tt.sentiment, got, tt.want)
			}
		})
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		intent Intent
		want   State
	}{
		{IntentGreeting, StateListening},
		{IntentGoodbye, StateClosing},
		{IntentTransferRequest, StateClosing},
		{IntentUnclear, StateClarifying},
		{IntentQuestion, StateListening},
		{IntentComplaint, StateListening},
	}

	for _, tt := range tests {
		if got := NextState(tt.intent); got != tt.want {
			t.Errorf("NextState(%s) = %s, want %s", tt.intent, got, tt.want)
		}
	}
}

func TestEndAndTransferSignals(t *testing.T) {
	if !ShouldEndCall(IntentGoodbye) {
		t.Error("goodbye should end the call")
	}
	if ShouldEndCall(IntentQuestion) {
		t.Error("question should not end the call")
	}
	if !ShouldTransfer(IntentTransferRequest) {
		t.Error("transfer_request should transfer")
	}
	if ShouldTransfer(IntentGoodbye) {
		t.Error("goodbye should not transfer")
	}
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantIntent    Intent
		wantSentiment Sentiment
	}{
		{
			name:          "valid analysis",
			raw:           `{"intent": "question", "sentiment": "positive", "confidence": 0.92}`,
			wantIntent:    IntentQuestion,
			wantSentiment: SentimentPositive,
		},
		{
			name:          "malformed json falls back to unclear",
			raw:           `I think the caller wants to ask something`,
			wantIntent:    IntentUnclear,
			wantSentiment: SentimentNeutral,
		},
		{
			name:          "unknown intent falls back to unclear",
			raw:           `{"intent": "existential_dread", "sentiment": "negative", "confidence": 0.8}`,
			wantIntent:    IntentUnclear,
			wantSentiment: SentimentNeutral,
		},
		{
			name:          "unknown sentiment normalized to neutral",
			raw:           `{"intent": "request", "sentiment": "ambivalent", "confidence": 0.7}`,
			wantIntent:    IntentRequest,
			wantSentiment: SentimentNeutral,
		},
		{
			name:          "transfer request accepted",
			raw:           `{"intent": "transfer_request", "sentiment": "negative", "confidence": 0.88}`,
			wantIntent:    IntentTransferRequest,
			wantSentiment: SentimentNegative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnalysis(tt.raw)
			if got.Intent != tt.wantIntent {
				t.Errorf("intent = %s, want %s", got.Intent, tt.wantIntent)
			}
			if got.Sentiment != tt.wantSentiment {
				t.Errorf("sentiment = %s, want %s", got.Sentiment, tt.wantSentiment)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("confidence %f out of range", got.Confidence)
			}
		})
	}
}

func TestSentimentScore(t *testing.T) {
	if got := SentimentScore(SentimentPositive); got != 0.8 {
		t.Errorf("positive = %f, want 0.8", got)
	}
	if got := SentimentScore(SentimentNegative); got != -0.8 {
		t.Errorf("negative = %f, want -0.8", got)
	}
	if got := SentimentScore(SentimentNeutral); got != 0 {
		t.Errorf("neutral = %f, want 0", got)
	}
}
