package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// systemPrompts keys conversation style by campaign type.
var systemPrompts = map[string]string{
	"sales": `You are a professional, friendly sales representative making outbound calls.
Your goal is to have natural, helpful conversations while being respectful of people's time.
- Be conversational and human-like
- Listen actively and respond appropriately
- Handle objections professionally
- Know when to gracefully end the conversation
- Keep responses concise but engaging`,

	"support": `You are a helpful customer support agent making follow-up calls.
- Be empathetic and solution-focused
- Ask clarifying questions when needed
- Provide clear, actionable information
- Maintain a professional yet warm tone
- Escalate complex issues appropriately`,

	"appointment": `You are calling to schedule or confirm appointments.
- Be clear about the purpose of your call
- Offer flexible scheduling options
- Confirm details accurately
- Handle scheduling conflicts professionally
- Thank people for their time`,
}

// Canned fallbacks used when the provider fails at a point where a line
// must still be spoken.
const (
	FallbackGreeting = "Hello! How can I help you today?"
	FallbackClosing  = "Thank you for your time. Have a great day!"
	RecoveryPrompt   = "I apologize, I'm having trouble hearing you. Could you please repeat that?"
)

// OpenAIProvider implements Provider on the OpenAI chat completions API.
//
// Two models are used: ChatModel for conversational replies, and the
// cheaper AnalysisModel for intent classification and summaries, where
// JSON-mode structured output matters more than prose quality.
//
// Thread Safety: OpenAIProvider is safe for concurrent use; each call
// is an independent API request.
type OpenAIProvider struct {
	client        *openai.Client
	chatModel     string
	analysisModel string
}

// OpenAIConfig configures the dialogue provider.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	ChatModel     string
	AnalysisModel string
}

// NewOpenAIProvider creates a dialogue provider backed by OpenAI.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = openai.GPT4o
	}
	analysisModel := cfg.AnalysisModel
	if analysisModel == "" {
		analysisModel = openai.GPT4oMini
	}

	return &OpenAIProvider{
		client:        openai.NewClientWithConfig(clientCfg),
		chatModel:     chatModel,
		analysisModel: analysisModel,
	}
}

// ClassifyIntent analyzes a caller utterance with the analysis model in
// JSON mode. A malformed provider response degrades to an "unclear"
// analysis rather than an error, so one flaky classification does not
// burn a recovery attempt.
func (p *OpenAIProvider) ClassifyIntent(ctx context.Context, text string, history []Message) (*Analysis, error) {
	prompt := fmt.Sprintf(`Analyze this caller utterance from a phone conversation.

Caller said: %q

Conversation context: %d previous messages.

Respond with JSON only:
{
  "intent": "one of: greeting, question, request, complaint, compliment, goodbye, unclear, interruption, hold_request, transfer_request",
  "sentiment": "positive, negative, or neutral",
  "confidence": 0.0
}`, text, len(history))

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.analysisModel,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: intent classification: %v", ErrDialogue, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: intent classification returned no choices", ErrDialogue)
	}

	return ParseAnalysis(resp.Choices[0].Message.Content), nil
}

// ParseAnalysis decodes a JSON intent analysis, falling back to an
// unclear/neutral analysis when the payload does not parse or names an
// unknown intent.
func ParseAnalysis(raw string) *Analysis {
	fallback := &Analysis{Intent: IntentUnclear, Sentiment: SentimentNeutral, Confidence: 0.5}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return fallback
	}
	if _, ok := emotionByIntent[analysis.Intent]; !ok {
		switch analysis.Intent {
		case IntentInterruption, IntentHoldRequest, IntentTransferRequest:
			// Valid intents without a dedicated emotion mapping.
		default:
			return fallback
		}
	}
	switch analysis.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		analysis.Sentiment = SentimentNeutral
	}
	if analysis.Confidence <= 0 || analysis.Confidence > 1 {
		analysis.Confidence = 0.5
	}
	return &analysis
}

// GenerateReply produces the next assistant utterance with the chat model.
func (p *OpenAIProvider) GenerateReply(ctx context.Context, history []Message, analysis *Analysis, callCtx Context) (*Reply, error) {
	system := systemPromptFor(callCtx)

	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: system}}
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf(`Current analysis:
- Intent: %s
- Sentiment: %s

Respond appropriately to this intent while maintaining natural conversation flow.
Keep your response conversational and under 100 words.`, analysis.Intent, analysis.Sentiment),
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:            p.chatModel,
		Messages:         messages,
		Temperature:      0.7,
		MaxTokens:        200,
		PresencePenalty:  0.1,
		FrequencyPenalty: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reply generation: %v", ErrDialogue, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: reply generation returned no choices", ErrDialogue)
	}

	return &Reply{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

// Greeting produces a personalized opening line for a just-answered call.
func (p *OpenAIProvider) Greeting(ctx context.Context, callCtx Context) (*Reply, error) {
	purpose := map[string]string{
		"sales":       "a sales call",
		"support":     "a support follow-up call",
		"appointment": "an appointment confirmation call",
	}[normalizeCampaignType(callCtx.CampaignType)]

	prompt := fmt.Sprintf("Generate a friendly, professional greeting for %s", purpose)
	if callCtx.ContactName != "" {
		prompt += fmt.Sprintf(" to %s", callCtx.ContactName)
	}
	prompt += ". Keep it under 50 words."

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.analysisModel,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: greeting generation: %v", ErrDialogue, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: greeting generation returned no choices", ErrDialogue)
	}

	return &Reply{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

// Closing produces a short sign-off line for a terminating call.
func (p *OpenAIProvider) Closing(ctx context.Context, callCtx Context, reason string) (*Reply, error) {
	prompt := fmt.Sprintf("Generate a polite, professional phone call ending for this reason: %s. Keep it under 30 words and sound natural.", reason)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.analysisModel,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.5,
		MaxTokens:   50,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: closing generation: %v", ErrDialogue, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: closing generation returned no choices", ErrDialogue)
	}

	return &Reply{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

// Summarize condenses the conversation into the end-of-call record.
func (p *OpenAIProvider) Summarize(ctx context.Context, history []Message) (*Summary, error) {
	if len(history) == 0 {
		return &Summary{Outcome: "unsuccessful", Sentiment: SentimentNeutral, Notes: "no conversation took place"}, nil
	}

	var transcript strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&transcript, "%s: %s\n", msg.Role, msg.Content)
	}

	prompt := fmt.Sprintf(`Summarize this phone conversation:

%s
Respond with JSON only:
{
  "outcome": "successful, unsuccessful, or partial",
  "customer_sentiment": "positive, negative, or neutral",
  "notes": "brief summary"
}`, transcript.String())

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.analysisModel,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   300,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: summarization: %v", ErrDialogue, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: summarization returned no choices", ErrDialogue)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &summary); err != nil {
		return nil, fmt.Errorf("%w: summary did not parse: %v", ErrDialogue, err)
	}
	if summary.Outcome == "" {
		summary.Outcome = "partial"
	}
	switch summary.Sentiment {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		summary.Sentiment = SentimentNeutral
	}
	return &summary, nil
}

func systemPromptFor(callCtx Context) string {
	system := systemPrompts[normalizeCampaignType(callCtx.CampaignType)]
	if callCtx.ContactName != "" {
		system += fmt.Sprintf("\n\nYou are speaking with %s.", callCtx.ContactName)
	}
	if callCtx.Script != "" {
		system += fmt.Sprintf("\n\nCall script for reference:\n%s", callCtx.Script)
	}
	return system
}

func normalizeCampaignType(campaignType string) string {
	if _, ok := systemPrompts[campaignType]; ok {
		return campaignType
	}
	return "sales"
}
