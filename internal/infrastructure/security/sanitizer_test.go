package security

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "long token keeps 6 and 4", token: "abcdef1234567890wxyz", want: "abcdef**********wxyz"},
		{name: "exactly eleven characters", token: "abcdef0wxyz", want: "abcdef*wxyz"},
		{name: "short token is redacted", token: "short", want: "[REDACTED]"},
		{name: "empty token is redacted", token: "", want: "[REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskToken(tt.token)
			if got != tt.want {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
			if tt.token != "" && len(tt.token) > 10 && strings.Contains(got, tt.token[6:len(tt.token)-4]) {
				t.Error("masked token leaks the middle section")
			}
		})
	}
}

func TestSanitizeHeaders(t *testing.T) {
	headers := http.Header{
		"Authorization": []string{"Basic dG9rZW46"},
		"Content-Type":  []string{"application/json"},
		"Accept":        []string{"application/json", "text/plain"},
	}

	result := SanitizeHeaders(headers)

	if result["Authorization"] != "[REDACTED]" {
		t.Errorf("expected Authorization redacted, got %q", result["Authorization"])
	}
	if result["Content-Type"] != "application/json" {
		t.Errorf("unexpected Content-Type %q", result["Content-Type"])
	}
	if result["Accept"] != "application/json, text/plain" {
		t.Errorf("expected joined values, got %q", result["Accept"])
	}
}

func TestSanitizeBody(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		maxSize     int
		expectation func(t *testing.T, result map[string]any)
	}{
		{
			name: "sensitive fields are redacted recursively",
			body: []byte(`{"cnpj_emitente":"123","api_token":"xyz","itens":[{"senha":"1","descricao":"A"}]}`),
			expectation: func(t *testing.T, result map[string]any) {
				if result["api_token"] != "[REDACTED]" {
					t.Errorf("expected api_token redacted, got %v", result["api_token"])
				}
				if result["cnpj_emitente"] != "123" {
					t.Errorf("expected cnpj kept, got %v", result["cnpj_emitente"])
				}
				item := result["itens"].([]any)[0].(map[string]any)
				if item["senha"] != "[REDACTED]" || item["descricao"] != "A" {
					t.Errorf("unexpected nested item %v", item)
				}
			},
		},
		{
			name:    "oversized body is truncated",
			body:    []byte(`{"discriminacao":"` + strings.Repeat("x", 100) + `"}`),
			maxSize: 20,
			expectation: func(t *testing.T, result map[string]any) {
				if result["_truncated"] != true {
					t.Errorf("expected truncated marker, got %v", result)
				}
			},
		},
		{
			name: "plain text is wrapped",
			body: []byte("Bad Gateway"),
			expectation: func(t *testing.T, result map[string]any) {
				if result["_raw"] != "Bad Gateway" {
					t.Errorf("expected raw text wrapped, got %v", result)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := SanitizeBody(tt.body, tt.maxSize)
			var result map[string]any
			if err := json.Unmarshal(raw, &result); err != nil {
				t.Fatalf("sanitized body is not JSON: %v", err)
			}
			tt.expectation(t, result)
		})
	}

	if SanitizeBody(nil, 0) != nil {
		t.Error("expected nil for empty body")
	}
}

func TestSanitizeURL(t *testing.T) {
	got := SanitizeURL("https://token123:@api.focusnfe.com.br/v2/nfe?ref=nfe-1-2&token=abc")
	if strings.Contains(got, "token123") || strings.Contains(got, "token=abc") {
		t.Errorf("expected credentials removed, got %q", got)
	}
	if !strings.Contains(got, "ref=nfe-1-2") {
		t.Errorf("expected ref kept, got %q", got)
	}
}
