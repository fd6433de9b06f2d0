package llm

import (
	"context"
	"sync"
)

// MockProvider replays scripted replies in order and repeats the last one
// once the script is exhausted. Useful offline and in tests.
type MockProvider struct {
	mu       sync.Mutex
	replies  []string
	calls    int
	requests []CompletionRequest

	// Err, when set, is returned by every Complete call
	Err error
}

// NewMockProvider creates a mock provider with the given script
func NewMockProvider(replies ...string) *MockProvider {
	if len(replies) == 0 {
		replies = []string{"ANSWER: No answer is available in offline mode."}
	}
	return &MockProvider{replies: replies}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return "mock"
}

// IsAvailable always reports true
func (p *MockProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// Complete returns the next scripted reply
func (p *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)
	if p.Err != nil {
		return nil, p.Err
	}

	i := min(p.calls, len(p.replies)-1)
	p.calls++
	return &CompletionResponse{Content: p.replies[i], Model: "mock"}, nil
}

// Calls returns the number of Complete calls made
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of every request received
func (p *MockProvider) Requests() []CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]CompletionRequest(nil), p.requests...)
}
