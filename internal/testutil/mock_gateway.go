package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
)

// MockGateway is a mock implementation of fiscal.Gateway that records calls.
type MockGateway struct {
	SendFunc func(ctx context.Context, req fiscal.GatewayRequest) fiscal.GatewayResult

	mu    sync.Mutex
	calls []fiscal.GatewayRequest
}

// Send records the request and calls the mock function if set, otherwise
// returns an empty 200 success.
func (m *MockGateway) Send(ctx context.Context, req fiscal.GatewayRequest) fiscal.GatewayResult {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return OK(`{}`)
}

// Calls returns the recorded requests.
func (m *MockGateway) Calls() []fiscal.GatewayRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]fiscal.GatewayRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Send was invoked.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// OK builds a successful result with the given JSON body.
func OK(body string) fiscal.GatewayResult {
	return fiscal.GatewayResult{
		Success:    true,
		StatusCode: http.StatusOK,
		Body:       json.RawMessage(body),
		BaseURL:    "https://homologacao.focusnfe.com.br",
	}
}

// Failed builds a provider failure result.
func Failed(status int, code string, messages ...string) fiscal.GatewayResult {
	return fiscal.GatewayResult{
		StatusCode: status,
		Error:      &fiscal.ProviderError{Code: code, Messages: messages},
		BaseURL:    "https://homologacao.focusnfe.com.br",
	}
}

// Unreachable builds the result of a call that never reached the provider.
func Unreachable() fiscal.GatewayResult {
	return fiscal.GatewayResult{
		Error: &fiscal.ProviderError{Code: fiscal.CodeTransportFailure, Messages: []string{"Falha de comunicação com o provedor fiscal"}},
		Trace: fiscal.DebugTrace{Error: "dial tcp: connection refused"},
	}
}
