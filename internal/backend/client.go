package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is where a locally running server listens.
const DefaultBaseURL = "http://127.0.0.1:8188"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4096

// Endpoints are the server paths relative to the base URL.
type Endpoints struct {
	Submit    string `json:"submit" yaml:"submit" toml:"submit"`
	Interrupt string `json:"interrupt" yaml:"interrupt" toml:"interrupt"`
	// Status is a prefix; the job id is appended as a path segment.
	Status   string `json:"status" yaml:"status" toml:"status"`
	Artifact string `json:"artifact" yaml:"artifact" toml:"artifact"`
	Stream   string `json:"stream" yaml:"stream" toml:"stream"`
}

// DefaultEndpoints returns the server's standard paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Submit:    "/prompt",
		Interrupt: "/interrupt",
		Status:    "/history",
		Artifact:  "/view",
		Stream:    "/ws",
	}
}

// withDefaults fills empty paths.
func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.Submit == "" {
		e.Submit = d.Submit
	}
	if e.Interrupt == "" {
		e.Interrupt = d.Interrupt
	}
	if e.Status == "" {
		e.Status = d.Status
	}
	if e.Artifact == "" {
		e.Artifact = d.Artifact
	}
	if e.Stream == "" {
		e.Stream = d.Stream
	}
	return e
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Endpoints  Endpoints
	HTTPClient *http.Client
	// RequestTimeout bounds each HTTP call. Zero means 30s.
	RequestTimeout time.Duration
	// ConnectTimeout bounds dialing. Zero means 5s.
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// Client is a stateless HTTP client for the generation server.
type Client struct {
	baseURL    string
	endpoints  Endpoints
	httpClient *http.Client
	reqTimeout time.Duration
	dialer     *net.Dialer
	log        zerolog.Logger
}

// NewClient constructs a Client from Options.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	reqTimeout := opts.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = 30 * time.Second
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	cli := opts.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		// Deadlines come from per-request contexts.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	return &Client{
		baseURL:    base,
		endpoints:  opts.Endpoints.withDefaults(),
		httpClient: cli,
		reqTimeout: reqTimeout,
		dialer:     dialer,
		log:        opts.Logger,
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// CloseIdleConnections releases pooled keep-alive connections.
func (c *Client) CloseIdleConnections() { c.httpClient.CloseIdleConnections() }

type submitRequest struct {
	Prompt   Graph  `json:"prompt"`
	ClientID string `json:"client_id"`
}

type submitResponse struct {
	PromptID string `json:"prompt_id"`
	Number   int    `json:"number"`
}

// Submit queues a job graph and returns the server-assigned job id. Progress
// for the job is streamed to the websocket opened with the same clientID.
func (c *Client) Submit(ctx context.Context, graph Graph, clientID string) (string, error) {
	body, err := json.Marshal(submitRequest{Prompt: graph, ClientID: clientID})
	if err != nil {
		return "", fmt.Errorf("encode job graph: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoints.Submit, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return "", &SubmissionError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.PromptID == "" {
		return "", &SubmissionError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	c.log.Debug().Str("job_id", out.PromptID).Int("queue_number", out.Number).Msg("backend: job submitted")
	return out.PromptID, nil
}

// Status fetches the history entry for jobID. found is false while the server
// has no entry for the job yet.
func (c *Client) Status(ctx context.Context, jobID string) (History, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	endpoint := c.baseURL + strings.TrimRight(c.endpoints.Status, "/") + "/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return History{}, false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return History{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return History{}, false, fmt.Errorf("status: http %d", resp.StatusCode)
	}
	var entries map[string]History
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return History{}, false, fmt.Errorf("decode status: %w", err)
	}
	h, ok := entries[jobID]
	return h, ok, nil
}

// FetchArtifact downloads the bytes of a finished artifact.
func (c *Client) FetchArtifact(ctx context.Context, ref ArtifactRef) ([]byte, error) {
	if ref.Filename == "" {
		return nil, ErrArtifactNotFound
	}
	kind := ref.Type
	if kind == "" {
		kind = "output"
	}
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("type", kind)
	if ref.Subfolder != "" {
		q.Set("subfolder", ref.Subfolder)
	}
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.endpoints.Artifact+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &DownloadError{Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return nil, &DownloadError{Status: resp.StatusCode}
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{Err: err}
	}
	return b, nil
}

// Interrupt asks the server to abort jobID if it is executing. An empty jobID
// aborts whatever is running. Callers treat failures as advisory.
func (c *Client) Interrupt(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
	defer cancel()
	var body io.Reader
	if jobID != "" {
		b, err := json.Marshal(map[string]string{"prompt_id": jobID})
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.endpoints.Interrupt, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("interrupt: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("interrupt: " + resp.Status)
	}
	return nil
}
