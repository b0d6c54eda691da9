// Package ledger talks to the Canton JSON Ledger API: a generic
// query/submit transport plus the mapping from raw contract records to
// the typed views the accounting core works with.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/luxfi/log"

	"github.com/cantonlabs/vault/pkg/vault"
)

const (
	DefaultBaseURL    = "http://localhost:6201/v2"
	DefaultTimeout    = 10 * time.Second
	DefaultSubmitPath = "/command/submit"
)

// Config configures the gateway client. Zero values fall back to the
// defaults above.
type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
	SubmitPath  string
}

// Client is the ledger gateway. It carries no vault semantics: callers
// get contracts and completion offsets, nothing more.
type Client struct {
	http       *http.Client
	baseURL    string
	token      string
	submitPath string
	logger     log.Logger
}

// NewClient builds a gateway client with a bounded request timeout.
func NewClient(cfg Config, logger log.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SubmitPath == "" {
		cfg.SubmitPath = DefaultSubmitPath
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		submitPath: cfg.SubmitPath,
		logger:     logger,
	}
}

// Contract is a raw active contract as returned by the ledger.
type Contract struct {
	TemplateID string          `json:"templateId"`
	ContractID string          `json:"contractId"`
	Payload    json.RawMessage `json:"payload"`
}

// ExerciseCommand exercises a choice on an existing contract.
type ExerciseCommand struct {
	TemplateID string      `json:"templateId"`
	ContractID string      `json:"contractId"`
	Choice     string      `json:"choice"`
	Argument   interface{} `json:"argument"`
}

// SubmitResult is the completion the ledger reports for a command.
type SubmitResult struct {
	CompletionOffset string `json:"completionOffset"`
}

// IsAvailable is the single liveness probe: any HTTP answer from the
// ledger endpoint counts as reachable. Callers cache the result; the
// gateway itself holds no mode state.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/parties", nil)
	if err != nil {
		return false
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("ledger probe failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode < http.StatusInternalServerError
}

// QueryContracts returns active contracts of a template, optionally
// narrowed by a payload filter and read delegation.
func (c *Client) QueryContracts(ctx context.Context, templateID string, filter map[string]interface{}, readers []string) ([]Contract, error) {
	body := map[string]interface{}{
		"templateIds": []string{templateID},
	}
	if len(filter) > 0 {
		body["query"] = filter
	}
	if len(readers) > 0 {
		body["readAs"] = readers
	}
	var out struct {
		Result []Contract `json:"result"`
	}
	if err := c.post(ctx, "/query", body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

// Submit sends commands acting as the given parties and returns the
// completion offset. It does not retry; a stale contract reference comes
// back as a Conflict for the caller to refresh and resubmit.
func (c *Client) Submit(ctx context.Context, actAs []string, commands []ExerciseCommand) (SubmitResult, error) {
	body := map[string]interface{}{
		"actAs":    actAs,
		"commands": commands,
	}
	var out struct {
		SubmitResult
		Result *SubmitResult `json:"result"`
	}
	if err := c.post(ctx, c.submitPath, body, &out); err != nil {
		return SubmitResult{}, err
	}
	if out.Result != nil {
		return *out.Result, nil
	}
	return out.SubmitResult, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", vault.ErrLedgerResponse, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", vault.ErrLedgerResponse, err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures and timeouts are transient, never success.
		return fmt.Errorf("%w: %v", vault.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", vault.ErrUnavailable, err)
	}

	if err := classifyStatus(resp.StatusCode, data); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode %s response: %v", vault.ErrLedgerResponse, path, err)
		}
	}
	return nil
}

// classifyStatus maps ledger HTTP answers onto the error taxonomy. Stale
// contract references surface as Conflict so the caller can refresh and
// retry; everything unexpected is fatal.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", vault.ErrConflict, strings.TrimSpace(string(body)))
	case status == http.StatusBadRequest && bytes.Contains(body, []byte("CONTRACT_NOT_ACTIVE")):
		return fmt.Errorf("%w: %s", vault.ErrConflict, strings.TrimSpace(string(body)))
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout, status == http.StatusBadGateway:
		return fmt.Errorf("%w: ledger returned %d", vault.ErrUnavailable, status)
	default:
		return fmt.Errorf("%w: status %d: %s", vault.ErrLedgerResponse, status, strings.TrimSpace(string(body)))
	}
}
