package llm

import "context"

// MockProvider is a test double for Provider. If CompleteFunc is set it
// handles the call; otherwise Response and Err are returned as-is.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []*Message) (string, error)
	Response     string
	Err          error
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, messages []*Message) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages)
	}
	return m.Response, m.Err
}

// Model implements Provider.
func (m *MockProvider) Model() string {
	return "mock"
}
