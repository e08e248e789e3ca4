package fiscal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies engine failures.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindTransport         ErrorKind = "transport"
	KindProviderRejection ErrorKind = "provider_rejection"
	KindUnknown           ErrorKind = "unknown"
)

// Expected reports whether failures of this kind are user-input problems that
// should not be logged as incidents.
func (k ErrorKind) Expected() bool {
	return k == KindConfiguration || k == KindValidation || k == KindNotFound
}

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Error is the single error type crossing the engine boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewConfigurationError reports a missing token or required fiscal setting.
func NewConfigurationError(message string, fields ...string) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Fields: fields}
}

// NewValidationError reports missing or invalid input data.
func NewValidationError(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NewNotFoundError reports a missing document or profile.
func NewNotFoundError(message string, cause error) *Error {
	return &Error{Kind: KindNotFound, Message: message, Cause: cause}
}

// NewTransportError reports network failures and uninterpretable provider responses.
func NewTransportError(message string, cause error) *Error {
	return &Error{Kind: KindTransport, Message: message, Cause: cause}
}

// NewProviderRejection reports a structured business-rule error from the provider.
func NewProviderRejection(message string) *Error {
	return &Error{Kind: KindProviderRejection, Message: message}
}

// NewUnknownError wraps anything unexpected, including recovered panics.
func NewUnknownError(cause error) *Error {
	return &Error{Kind: KindUnknown, Message: "erro inesperado ao processar o documento fiscal", Cause: cause}
}

// KindOf extracts the kind of err, defaulting to KindUnknown.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// ProviderError is the normalized error payload of the provider. Providers
// return the message list either as a string or as a list; it is always a
// slice here.
type ProviderError struct {
	Code     string   `json:"code,omitempty"`
	Messages []string `json:"messages,omitempty"`
}

// Message joins the provider messages into one line.
func (p *ProviderError) Message() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.Messages, "; ")
}

// Interpretable reports whether the provider said anything beyond an HTTP status.
func (p *ProviderError) Interpretable() bool {
	return p != nil && (p.Code != "" || len(p.Messages) > 0)
}

// CodeTransportFailure marks gateway results that never reached the provider.
const CodeTransportFailure = "falha_comunicacao"

// ParseMessages flattens a provider message field into a list. The field may
// be a string, a list of strings, or a list of objects carrying "mensagem".
func ParseMessages(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			return []string{s}
		}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var obj providerMessage
		if err := json.Unmarshal(raw, &obj); err == nil && obj.Mensagem != "" {
			return []string{obj.Mensagem}
		}
		return nil
	}

	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj providerMessage
		if err := json.Unmarshal(item, &obj); err == nil && obj.Mensagem != "" {
			out = append(out, obj.Mensagem)
		}
	}
	return out
}

// FirstCode returns the "codigo" of the first object in a provider error list.
func FirstCode(raw json.RawMessage) string {
	var items []providerMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	for _, item := range items {
		if item.Codigo != "" {
			return item.Codigo
		}
	}
	return ""
}

type providerMessage struct {
	Codigo   string `json:"codigo"`
	Mensagem string `json:"mensagem"`
}
