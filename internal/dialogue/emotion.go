package dialogue

// emotionByIntent is the fixed intent-to-emotion table used to tag
// synthesized speech. Sentiment only escalates a neutral or friendly
// mapping, it never overrides an intent-specific one.
var emotionByIntent = map[Intent]string{
	IntentGreeting:   "friendly",
	IntentQuestion:   "helpful",
	IntentRequest:    "professional",
	IntentComplaint:  "empathetic",
	IntentCompliment: "happy",
	IntentGoodbye:    "friendly",
	IntentUnclear:    "patient",
}

// EmotionFor selects the speaking emotion for a reply from the detected
// intent and sentiment.
func EmotionFor(intent Intent, sentiment Sentiment) string {
	emotion, ok := emotionByIntent[intent]
	if !ok {
		emotion = "neutral"
	}

	switch {
	case sentiment == SentimentNegative && emotion == "friendly":
		return "empathetic"
	case sentiment == SentimentPositive && (emotion == "friendly" || emotion == "neutral"):
		return "happy"
	}
	return emotion
}

// nextStateByIntent maps caller intent to the following conversation state.
var nextStateByIntent = map[Intent]State{
	IntentGreeting:        StateListening,
	IntentGoodbye:         StateClosing,
	IntentTransferRequest: StateClosing,
	IntentUnclear:         StateClarifying,
}

// NextState returns the conversation state entered after responding to
// the given intent. Unmapped intents return to listening.
func NextState(intent Intent) State {
	if state, ok := nextStateByIntent[intent]; ok {
		return state
	}
	return StateListening
}

// ShouldEndCall reports whether the intent terminates the conversation.
func ShouldEndCall(intent Intent) bool {
	return intent == IntentGoodbye
}

// ShouldTransfer reports whether the intent requests a human handoff.
func ShouldTransfer(intent Intent) bool {
	return intent == IntentTransferRequest
}

// SentimentScore converts a sentiment label to the numeric score stored
// on the call record.
func SentimentScore(sentiment Sentiment) float64 {
	switch sentiment {
	case SentimentPositive:
		return 0.8
	case SentimentNegative:
		return -0.8
	default:
		return 0.0
	}
}
