package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"motorgestor-api/internal/metrics"
)

const (
	DefaultFipeBaseURL   = "https://parallelum.com.br/fipe/api/v1/carros"
	DefaultFipeUserAgent = "motorgestor/1.0 (+fipe)"
)

// Upstream steps, also used as metric labels
const (
	StepMarcas  = "marcas"
	StepModelos = "modelos"
	StepAnos    = "anos"
	StepValor   = "valor"
)

// Codigo is an upstream identifier. FIPE sends brand codes as strings and
// model codes as numbers, so both are accepted.
type Codigo string

func (c *Codigo) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Codigo(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid codigo %s: %w", data, err)
	}
	*c = Codigo(n.String())
	return nil
}

func (c Codigo) String() string { return string(c) }

// Marca represents a vehicle brand
type Marca struct {
	Nome   string `json:"nome"`
	Codigo Codigo `json:"codigo"`
}

func (m Marca) DisplayName() string { return m.Nome }

// Modelo represents a vehicle model of a brand
type Modelo struct {
	Nome   string `json:"nome"`
	Codigo Codigo `json:"codigo"`
}

func (m Modelo) DisplayName() string { return m.Nome }

// Ano represents a model year entry, e.g. {"nome": "2020 Gasolina", "codigo": "2020-1"}
type Ano struct {
	Nome   string `json:"nome"`
	Codigo Codigo `json:"codigo"`
}

func (a Ano) DisplayName() string { return a.Nome }

// ModelosResponse wraps the models array (the endpoint also lists years)
type ModelosResponse struct {
	Modelos []Modelo `json:"modelos"`
	Anos    []Ano    `json:"anos"`
}

// ValorResponse is the FIPE price payload. Only the fields the lookup reads
// are decoded, so type changes elsewhere in the payload do not break it.
type ValorResponse struct {
	Valor         string `json:"Valor"`
	CodigoFipe    string `json:"CodigoFipe"`
	MesReferencia string `json:"MesReferencia"`
}

// Timeouts are the per-step budgets. Each call is aborted when its budget runs out.
type Timeouts struct {
	Marcas  time.Duration
	Modelos time.Duration
	Anos    time.Duration
	Valor   time.Duration
}

// DefaultTimeouts mirror typical upstream latency: deeper calls get more time
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Marcas:  6 * time.Second,
		Modelos: 7 * time.Second,
		Anos:    7 * time.Second,
		Valor:   8 * time.Second,
	}
}

// FipeConfig configures the FIPE client
type FipeConfig struct {
	BaseURL   string
	UserAgent string
	Timeouts  Timeouts
	// RateLimit in requests per second, 0 disables
	RateLimit float64
}

// UpstreamError is any failure talking to FIPE: transport, timeout, non-2xx or a
// body that is not the expected JSON. Nothing is retried.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("FIPE %s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("FIPE %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Timeout reports whether the step ran out of its budget
func (e *UpstreamError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// FipeClient handles communication with the FIPE reference-price API
type FipeClient struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	timeouts    Timeouts
	rateLimiter *RateLimiter
	metrics     *metrics.Metrics
}

// NewFipeClient creates a new FIPE API client. Empty fields fall back to defaults.
func NewFipeClient(cfg FipeConfig, m *metrics.Metrics) *FipeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFipeBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultFipeUserAgent
	}

	defaults := DefaultTimeouts()
	if cfg.Timeouts.Marcas <= 0 {
		cfg.Timeouts.Marcas = defaults.Marcas
	}
	if cfg.Timeouts.Modelos <= 0 {
		cfg.Timeouts.Modelos = defaults.Modelos
	}
	if cfg.Timeouts.Anos <= 0 {
		cfg.Timeouts.Anos = defaults.Anos
	}
	if cfg.Timeouts.Valor <= 0 {
		cfg.Timeouts.Valor = defaults.Valor
	}

	c := &FipeClient{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		timeouts:   cfg.Timeouts,
		metrics:    m,
	}

	if cfg.RateLimit > 0 {
		c.rateLimiter = NewRateLimiter(cfg.RateLimit)
	}

	return c
}

// BaseURL returns the upstream address being dialed
func (c *FipeClient) BaseURL() string {
	return c.baseURL
}

// fetchJSON performs one bounded GET and decodes the JSON body into out.
//
// The budget starts from a context detached from the caller: an abandoned
// request does not cut the call short, it still ends at its own deadline.
// When the deadline fires the request and its connection are torn down.
func (c *FipeClient) fetchJSON(ctx context.Context, step, path string, timeout time.Duration, out any) (err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	start := time.Now()
	status := "error"
	defer func() {
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		c.metrics.ObserveUpstream(step, status, time.Since(start))
	}()

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &UpstreamError{Op: step, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &UpstreamError{Op: step, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: step, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status = strconv.Itoa(resp.StatusCode)
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &UpstreamError{
			Op:         step,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("FIPE upstream HTTP %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{
			Op:         step,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to parse %s response: %w", step, err),
		}
	}

	status = "ok"
	return nil
}

// GetMarcas fetches the full brand list
func (c *FipeClient) GetMarcas(ctx context.Context) ([]Marca, error) {
	var marcas []Marca
	if err := c.fetchJSON(ctx, StepMarcas, "/marcas", c.timeouts.Marcas, &marcas); err != nil {
		return nil, err
	}
	return marcas, nil
}

// GetModelos fetches the models of a brand
func (c *FipeClient) GetModelos(ctx context.Context, marca Codigo) ([]Modelo, error) {
	path := fmt.Sprintf("/marcas/%s/modelos", url.PathEscape(marca.String()))

	var resp ModelosResponse
	if err := c.fetchJSON(ctx, StepModelos, path, c.timeouts.Modelos, &resp); err != nil {
		return nil, err
	}
	return resp.Modelos, nil
}

// GetAnos fetches the year entries of a brand+model
func (c *FipeClient) GetAnos(ctx context.Context, marca, modelo Codigo) ([]Ano, error) {
	path := fmt.Sprintf("/marcas/%s/modelos/%s/anos",
		url.PathEscape(marca.String()), url.PathEscape(modelo.String()))

	var anos []Ano
	if err := c.fetchJSON(ctx, StepAnos, path, c.timeouts.Anos, &anos); err != nil {
		return nil, err
	}
	return anos, nil
}

// GetValor fetches the price of a brand+model+year
func (c *FipeClient) GetValor(ctx context.Context, marca, modelo, ano Codigo) (*ValorResponse, error) {
	path := fmt.Sprintf("/marcas/%s/modelos/%s/anos/%s",
		url.PathEscape(marca.String()), url.PathEscape(modelo.String()), url.PathEscape(ano.String()))

	var valor ValorResponse
	if err := c.fetchJSON(ctx, StepValor, path, c.timeouts.Valor, &valor); err != nil {
		return nil, err
	}
	return &valor, nil
}

// Close releases the rate limiter
func (c *FipeClient) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}
