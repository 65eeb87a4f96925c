package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/v0xg/uiharness/internal/crawler"
)

func TestParseCandidates(t *testing.T) {
	got, err := parseCandidates(`["#save", "button:has-text('Save')"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"#save", "button:has-text('Save')"}, got)

	got, err = parseCandidates("Here you go:\n```json\n[\"#a\", \"xpath://b\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"#a", "xpath://b"}, got)

	got, err = parseCandidates(`["#a", "", "#a", "button:has-text(", " #b "]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"#a", "#b"}, got)

	_, err = parseCandidates("I can't find that element.")
	assert.Error(t, err)
	_, err = parseCandidates(`[""]`)
	assert.Error(t, err)
	_, err = parseCandidates(`[1, 2`)
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	_, err := NewProvider("gemini", Options{APIKey: "k"})
	assert.Error(t, err)
	_, err = NewProvider("claude", Options{})
	assert.Error(t, err)
	_, err = NewProvider("openai", Options{})
	assert.Error(t, err)

	p, err := NewProvider("anthropic", Options{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeProvider{}, p)
	p, err = NewProvider("gpt", Options{APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)
}

var pageMap = &crawler.PageMap{
	URL:      "https://app.test",
	Elements: []crawler.Element{{Selector: "#invite", Tag: "button", Text: "Invite"}},
}

func TestClaudeSuggestCandidates(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
			"content":     []map[string]any{{"type": "text", "text": `["#invite", "button:has-text('Invite')"]`}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	p, err := NewClaudeProvider(Options{APIKey: "test-key", Model: "claude-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	got, err := p.SuggestCandidates(context.Background(), pageMap, "the invite button")
	require.NoError(t, err)
	assert.Equal(t, []string{"#invite", "button:has-text('Invite')"}, got)

	assert.Equal(t, "claude-test", gjson.GetBytes(body, "model").String())
	assert.Contains(t, gjson.GetBytes(body, "messages.0.content.0.text").String(), "Element: the invite button")
}

func TestOpenAISuggestCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "system", gjson.GetBytes(body, "messages.0.role").String())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion", "model": "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "[\"#invite\"]"},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	got, err := p.SuggestCandidates(context.Background(), pageMap, "invite")
	require.NoError(t, err)
	assert.Equal(t, []string{"#invite"}, got)
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"x","object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	p, err := NewOpenAIProvider(Options{APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	_, err = p.SuggestCandidates(context.Background(), pageMap, "invite")
	assert.ErrorContains(t, err, "empty response")
}
