package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	twclient "github.com/twilio/twilio-go/client"
)

// TwilioProvider places and controls calls through the Twilio Voice
// API.
//
// Thread Safety: TwilioProvider is safe for concurrent use.
type TwilioProvider struct {
	client     *twilio.RestClient
	validator  twclient.RequestValidator
	fromNumber string
}

// TwilioConfig holds credentials for the Twilio provider.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NewTwilioProvider creates a Twilio provider.
func NewTwilioProvider(cfg TwilioConfig) (*TwilioProvider, error) {
	if cfg.AccountSID == "" {
		return nil, errors.New("telephony: twilio account SID is required")
	}
	if cfg.AuthToken == "" {
		return nil, errors.New("telephony: twilio auth token is required")
	}

	return &TwilioProvider{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
		validator:  twclient.NewRequestValidator(cfg.AuthToken),
		fromNumber: cfg.FromNumber,
	}, nil
}

// Name returns the provider identifier.
func (p *TwilioProvider) Name() ProviderName { return ProviderTwilio }

// PlaceCall starts an outbound call.
func (p *TwilioProvider) PlaceCall(ctx context.Context, in PlaceCallParams) (*PlaceCallResult, error) {
	from := in.From
	if from == "" {
		from = p.fromNumber
	}
	if from == "" {
		return nil, errors.New("telephony: no from number configured")
	}
	if in.AnswerURL == "" {
		return nil, errors.New("telephony: answer URL is required")
	}

	timeout := in.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}

	params := &api.CreateCallParams{}
	params.SetTo(in.To)
	params.SetFrom(from)
	params.SetUrl(in.AnswerURL)
	params.SetTimeout(timeout)
	if in.StatusURL != "" {
		params.SetStatusCallback(in.StatusURL)
		params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	}

	call, err := p.client.Api.CreateCall(params)
	if err != nil {
		return nil, fmt.Errorf("telephony: failed to place call: %w", err)
	}

	result := &PlaceCallResult{}
	if call.Sid != nil {
		result.ProviderCallID = *call.Sid
	}
	if call.Status != nil {
		result.Status = *call.Status
	}
	return result, nil
}

// Hangup ends the call on the carrier side. A 404 from Twilio means
// the call already ended and is swallowed.
func (p *TwilioProvider) Hangup(ctx context.Context, providerCallID string) error {
	params := &api.UpdateCallParams{}
	params.SetStatus("completed")

	if _, err := p.client.Api.UpdateCall(providerCallID, params); err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil
		}
		return fmt.Errorf("telephony: failed to hang up call: %w", err)
	}
	return nil
}

// ValidateSignature verifies the X-Twilio-Signature header on a
// webhook form post.
func (p *TwilioProvider) ValidateSignature(fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return p.validator.Validate(fullURL, params, signature)
}
