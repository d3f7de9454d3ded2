package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lakshmanmandapati/tensora/internal/models"
)

const defaultBaseURL = "http://localhost:4000"

// Per-endpoint deadlines. Execution gets a longer window because the
// backend runs every proposed action before answering. Streams carry no
// deadline and end when the remote closes the body.
const (
	analyzeTimeout   = 30 * time.Second
	executeTimeout   = 60 * time.Second
	listToolsTimeout = 10 * time.Second
	callToolTimeout  = 30 * time.Second
	healthTimeout    = 5 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// Client hides the HTTP and SSE mechanics of the Tensora backend proxy
// and its conversation service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.BaseURL = normalizeBaseURL(baseURL)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.Logger = l
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL:    normalizeBaseURL(baseURL),
		HTTPClient: &http.Client{Timeout: 0}, // no client timeout; deadlines are per call
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 0}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, e.Message)
}

// AnalyzeRequest is the payload for POST /proxy/ai.
type AnalyzeRequest struct {
	Provider       string `json:"provider"`
	Prompt         string `json:"prompt"`
	MCPURL         string `json:"mcpUrl"`
	ServerName     string `json:"serverName"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Response is the backend's answer to an analyze call. Mode "chat" carries
// plain content; mode "tool" carries a plan with proposed actions. Error is
// set instead when the backend failed.
type Response struct {
	Error          string          `json:"error,omitempty"`
	Mode           string          `json:"mode,omitempty"`
	Response       string          `json:"response,omitempty"`
	Plan           string          `json:"plan,omitempty"`
	Actions        []models.Action `json:"actions,omitempty"`
	Confidence     float64         `json:"confidence,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

// Content returns the display text of a chat-mode response. Some providers
// answer in the plan field even in chat mode.
func (r *Response) Content() string {
	if r.Response != "" {
		return r.Response
	}
	return r.Plan
}

// Analyze performs the single-round-trip prompt analysis.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	var resp Response
	if err := c.postJSON(ctx, "/proxy/ai", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExecuteRequest is the payload for POST /proxy/ai/execute.
type ExecuteRequest struct {
	Actions        []models.Action `json:"actions"`
	MCPURL         string          `json:"mcpUrl"`
	ServerName     string          `json:"serverName"`
	ConversationID string          `json:"conversation_id,omitempty"`
}

// ExecuteResponse either carries a per-action results array or an overall
// error. Partial results are never fabricated client-side.
type ExecuteResponse struct {
	Error   string                `json:"error,omitempty"`
	Results []models.ActionResult `json:"results,omitempty"`
}

// Execute runs a confirmed plan against the MCP endpoint.
func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	var resp ExecuteResponse
	if err := c.postJSON(ctx, "/proxy/ai/execute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Conversation is a server-side conversation record. The client only
// depends on the id; everything else feeds the history browser.
type Conversation struct {
	ID        string `json:"conversation_id"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// CreateConversation asks the conversation service for a new id. Callers
// treat failure as non-fatal: a prompt still proceeds untracked.
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	body := map[string]any{"title": nil}
	if title != "" {
		body["title"] = title
	}
	var conv Conversation
	if err := c.postJSON(ctx, "/conversation", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.getJSON(ctx, "/conversations", &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	var conv Conversation
	if err := c.getJSON(ctx, "/conversation/"+id, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	return c.do(ctx, http.MethodDelete, "/conversation/"+id, nil, nil)
}

func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) error {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	return c.do(ctx, http.MethodPut, "/conversation/"+id+"/title", map[string]string{"title": title}, nil)
}

// AddConversationMessage mirrors a chat message into the server-side
// conversation record.
func (c *Client) AddConversationMessage(ctx context.Context, conversationID, role, content, msgType string) error {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()
	body := map[string]any{
		"conversation_id": conversationID,
		"role":            role,
		"content":         content,
		"type":            msgType,
		"metadata":        map[string]any{},
	}
	return c.postJSON(ctx, "/add_message", body, nil)
}

// GenerateTitle asks the backend to title a conversation from its first query.
func (c *Client) GenerateTitle(ctx context.Context, query, provider string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	var out struct {
		Title string `json:"title"`
	}
	body := map[string]any{"query": query, "provider": provider}
	if err := c.postJSON(ctx, "/title", body, &out); err != nil {
		return "", err
	}
	return out.Title, nil
}

// Tool is an MCP tool descriptor returned by listTools.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (c *Client) ListTools(ctx context.Context, mcpURL, serverName string) ([]Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, listToolsTimeout)
	defer cancel()

	body := map[string]any{"action": "listTools", "url": mcpURL, "serverName": serverName}
	var out struct {
		Tools []Tool `json:"tools"`
		Error string `json:"error,omitempty"`
	}
	if err := c.postJSON(ctx, "/proxy", body, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, fmt.Errorf("list tools: %s", out.Error)
	}
	return out.Tools, nil
}

func (c *Client) CallTool(ctx context.Context, mcpURL, serverName, toolName string, args map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, callToolTimeout)
	defer cancel()

	body := map[string]any{
		"action":     "callTool",
		"toolName":   toolName,
		"args":       args,
		"url":        mcpURL,
		"serverName": serverName,
	}
	var out json.RawMessage
	if err := c.postJSON(ctx, "/proxy", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Healthy reports whether the backend answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("request timeout: %w", err)
		}
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		if apiErr.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Message}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func normalizeBaseURL(baseURL string) string {
	if baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}
