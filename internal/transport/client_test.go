package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanmandapati/tensora/internal/models"
)

func TestNew_BaseURLNormalization(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "http://localhost:4000", New("").BaseURL)
	assert.Equal(t, "http://example.com", New("http://example.com/").BaseURL)
	assert.Equal(t, "http://example.com", New("http://example.com///").BaseURL)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/proxy/ai", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AnalyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemini", req.Provider)
		assert.Equal(t, "hello", req.Prompt)
		assert.Equal(t, "https://mcp.example.com", req.MCPURL)

		json.NewEncoder(w).Encode(Response{
			Mode:           models.ModeChat,
			Response:       "hi",
			ConversationID: "conv-1",
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Analyze(context.Background(), AnalyzeRequest{
		Provider: "gemini",
		Prompt:   "hello",
		MCPURL:   "https://mcp.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ModeChat, resp.Mode)
	assert.Equal(t, "hi", resp.Content())
	assert.Equal(t, "conv-1", resp.ConversationID)
}

func TestAnalyze_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{"error": "upstream provider down"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Analyze(context.Background(), AnalyzeRequest{Prompt: "hello"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Message, "upstream provider down")
}

func TestResponse_ContentFallsBackToPlan(t *testing.T) {
	t.Parallel()

	r := &Response{Plan: "only a plan"}
	assert.Equal(t, "only a plan", r.Content())

	r = &Response{Response: "direct", Plan: "ignored"}
	assert.Equal(t, "direct", r.Content())
}

func TestExecute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/proxy/ai/execute", r.URL.Path)

		var req ExecuteRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Actions, 1)
		assert.Equal(t, "create_task", req.Actions[0].Tool)

		json.NewEncoder(w).Encode(ExecuteResponse{
			Results: []models.ActionResult{
				{Action: "create_task", Success: true, Result: "done"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Execute(context.Background(), ExecuteRequest{
		Actions: []models.Action{{Tool: "create_task"}},
		MCPURL:  "https://mcp.example.com",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Success)
}

// The backend echoes each attempted action as a bare tool-name string;
// decode its literal wire format rather than a re-encoding of our own types.
func TestExecute_DecodesBackendResultShape(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"action":"gmail.send","success":true,"result":"sent","error":null},{"action":"calendar.create","success":false,"result":null,"error":"slot taken"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	resp, err := c.Execute(context.Background(), ExecuteRequest{
		Actions: []models.Action{{Tool: "gmail.send"}},
		MCPURL:  "https://mcp.example.com",
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, "gmail.send", resp.Results[0].Action)
	assert.True(t, resp.Results[0].Success)
	assert.Equal(t, "sent", resp.Results[0].Result)

	assert.Equal(t, "calendar.create", resp.Results[1].Action)
	assert.False(t, resp.Results[1].Success)
	assert.Equal(t, "slot taken", resp.Results[1].Error)
}

func TestConversationLifecycle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /conversation":
			json.NewEncoder(w).Encode(Conversation{ID: "conv-7"})
		case "GET /conversations":
			json.NewEncoder(w).Encode(map[string]any{
				"conversations": []Conversation{{ID: "conv-7", Title: "First"}},
			})
		case "GET /conversation/conv-7":
			json.NewEncoder(w).Encode(Conversation{ID: "conv-7", Title: "First"})
		case "PUT /conversation/conv-7/title":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "Renamed", body["title"])
			w.WriteHeader(http.StatusOK)
		case "DELETE /conversation/conv-7":
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "conv-7", conv.ID)

	list, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "First", list[0].Title)

	got, err := c.GetConversation(ctx, "conv-7")
	require.NoError(t, err)
	assert.Equal(t, "conv-7", got.ID)

	require.NoError(t, c.UpdateConversationTitle(ctx, "conv-7", "Renamed"))
	require.NoError(t, c.DeleteConversation(ctx, "conv-7"))
}

func TestGenerateTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/title", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{"title": "Trip planning"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	title, err := c.GenerateTitle(context.Background(), "plan my trip", "gemini")
	require.NoError(t, err)
	assert.Equal(t, "Trip planning", title)
}

func TestListTools(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/proxy", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "listTools", body["action"])

		json.NewEncoder(w).Encode(map[string]any{
			"tools": []Tool{{Name: "create_task", Description: "Creates a task"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	tools, err := c.ListTools(context.Background(), "https://mcp.example.com", "Default")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "create_task", tools[0].Name)
}

func TestListTools_BackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "webhook unreachable"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.ListTools(context.Background(), "https://bad.example.com", "Default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook unreachable")
}

func TestHealthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	assert.True(t, c.Healthy(context.Background()))

	srv.Close()
	assert.False(t, c.Healthy(context.Background()))
}

func TestParseAPIError_PlainBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("something broke"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Analyze(context.Background(), AnalyzeRequest{Prompt: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "something broke", apiErr.Message)
}
