package telephony

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
)

// MockProvider is an in-memory carrier for local development and
// tests. Signature validation always passes.
type MockProvider struct {
	mu     sync.Mutex
	calls  map[string]PlaceCallParams // providerCallID -> params
	nextID atomic.Int64
}

// NewMockProvider creates an empty mock carrier.
func NewMockProvider() *MockProvider {
	return &MockProvider{calls: make(map[string]PlaceCallParams)}
}

// Name returns the provider identifier.
func (p *MockProvider) Name() ProviderName { return ProviderMock }

// PlaceCall records the call and returns a synthetic SID.
func (p *MockProvider) PlaceCall(ctx context.Context, in PlaceCallParams) (*PlaceCallResult, error) {
	sid := fmt.Sprintf("MOCK%08d", p.nextID.Add(1))

	p.mu.Lock()
	p.calls[sid] = in
	p.mu.Unlock()

	return &PlaceCallResult{ProviderCallID: sid, Status: string(StatusQueued)}, nil
}

// Hangup forgets the call. Unknown SIDs are a no-op, matching the
// real provider's tolerance of already-ended calls.
func (p *MockProvider) Hangup(ctx context.Context, providerCallID string) error {
	p.mu.Lock()
	delete(p.calls, providerCallID)
	p.mu.Unlock()
	return nil
}

// ValidateSignature always accepts.
func (p *MockProvider) ValidateSignature(fullURL string, form url.Values, signature string) bool {
	return true
}

// ActiveCalls returns how many placed calls have not been hung up.
func (p *MockProvider) ActiveCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
