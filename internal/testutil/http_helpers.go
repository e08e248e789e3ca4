package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
)

// ErrorBody is the decoded {message, errors} envelope.
type ErrorBody struct {
	Message       string   `json:"message"`
	Errors        []string `json:"errors"`
	ReferenceCode string   `json:"referenceCode"`
}

// ReadJSONResponse asserts the status code and decodes the body into v.
func ReadJSONResponse(t testing.TB, w *httptest.ResponseRecorder, status int, v any) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
}

// ReadErrorResponse decodes an error envelope. The errors field must be
// present as an array, never null.
func ReadErrorResponse(t testing.TB, w *httptest.ResponseRecorder, status int) ErrorBody {
	t.Helper()
	var raw map[string]json.RawMessage
	ReadJSONResponse(t, w, status, &raw)
	if string(raw["errors"]) == "" || string(raw["errors"]) == "null" {
		t.Fatalf("expected errors array, got %q", raw["errors"])
	}

	var body ErrorBody
	for key, dst := range map[string]any{"message": &body.Message, "errors": &body.Errors, "referenceCode": &body.ReferenceCode} {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, dst); err != nil {
				t.Fatalf("decode %s: %v", key, err)
			}
		}
	}
	return body
}

// NewTenantRequest builds a request acting for tenantID. An empty tenant
// leaves the context untouched.
func NewTenantRequest(method, target, body, tenantID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != "" {
		req = req.WithContext(ctxutil.WithTenantID(req.Context(), tenantID))
	}
	return req
}
