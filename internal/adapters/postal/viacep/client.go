package viacep

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"3tcapital/ms_fiscal_core/internal/core/fiscal"
	"3tcapital/ms_fiscal_core/internal/core/postal"
)

const (
	// BaseURL is the public ViaCEP endpoint.
	BaseURL = "https://viacep.com.br/ws"
	// DefaultTimeout is the lookup budget; the directory is best-effort.
	DefaultTimeout = 5 * time.Second
)

// HTTPClient allows using both standard and traced HTTP clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements postal.Service against ViaCEP.
type Client struct {
	baseURL string
	client  HTTPClient
	log     *slog.Logger
}

// NewClient creates a ViaCEP client. If baseURL is empty the public endpoint is used.
func NewClient(baseURL string, httpClient HTTPClient, log *slog.Logger) postal.Service {
	if baseURL == "" {
		baseURL = BaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		log:     log,
	}
}

type viaCEPResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	IBGE       string `json:"ibge"`
	Erro       any    `json:"erro"`
}

// notFound reports the directory's miss marker, sent as true or "true".
func (r viaCEPResponse) notFound() bool {
	switch v := r.Erro.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// Lookup queries GET {base}/{cep}/json/.
func (c *Client) Lookup(ctx context.Context, postalCode string) (*postal.Location, error) {
	cep := fiscal.Digits(postalCode)
	if len(cep) != 8 {
		return nil, fmt.Errorf("%w: %q", postal.ErrMalformed, postalCode)
	}

	apiURL := c.baseURL + "/" + cep + "/json/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug("Consulting ViaCEP", "cep", cep)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("viacep request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	// ViaCEP answers 400 for syntactically invalid codes.
	if resp.StatusCode == http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s", postal.ErrMalformed, cep)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("viacep returned status %d", resp.StatusCode)
	}

	var result viaCEPResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse viacep response: %w", err)
	}
	if result.notFound() || result.IBGE == "" {
		return nil, fmt.Errorf("%w: %s", postal.ErrNotFound, cep)
	}

	return &postal.Location{
		PostalCode:       cep,
		Street:           result.Logradouro,
		Neighborhood:     result.Bairro,
		City:             result.Localidade,
		State:            result.UF,
		MunicipalityCode: result.IBGE,
	}, nil
}
