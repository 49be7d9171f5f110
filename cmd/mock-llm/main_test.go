package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postChat(t *testing.T, s *server, model, content string) chatResponse {
	t.Helper()

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: content}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	s.handleChatCompletions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	return resp
}

func TestBuiltinPlanResponse(t *testing.T) {
	s := newServer(map[string][]string{})

	resp := postChat(t, s, "gpt-4o-mini", "Generate a recovery plan for this power failure event")
	assert.Contains(t, resp.Choices[0].Message.Content, "plan_id")
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestBuiltinSolutionResponse(t *testing.T) {
	s := newServer(map[string][]string{})

	resp := postChat(t, s, "gpt-4o-mini", "Propose solutions for these airspace conflicts")
	assert.Contains(t, resp.Choices[0].Message.Content, "solutions")
}

func TestFixtureSequence(t *testing.T) {
	s := newServer(map[string][]string{
		"mock-planner": {`{"call":1}`, `{"call":2}`},
	})

	first := postChat(t, s, "mock-planner", "plan please")
	second := postChat(t, s, "mock-planner", "plan please")
	third := postChat(t, s, "mock-planner", "plan please")

	assert.Equal(t, `{"call":1}`, first.Choices[0].Message.Content)
	assert.Equal(t, `{"call":2}`, second.Choices[0].Message.Content)
	// Exhausted sequences repeat the last fixture.
	assert.Equal(t, `{"call":2}`, third.Choices[0].Message.Content)
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mock-planner.json"), []byte(`{"base":true}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mock-planner.1.json"), []byte(`{"n":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mock-planner.2.json"), []byte(`{"n":2}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)
	require.Contains(t, fixtures, "mock-planner")
	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"base":true}`}, fixtures["mock-planner"])
}

func TestLoadFixturesRejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{not json`), 0o644))

	_, err := loadFixtures(dir)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	s := newServer(map[string][]string{"mock-planner": {`{}`}})
	postChat(t, s, "mock-planner", "plan")
	postChat(t, s, "mock-planner", "plan")

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.CallsByModel["mock-planner"])
}

func TestMethodNotAllowed(t *testing.T) {
	s := newServer(map[string][]string{})
	rec := httptest.NewRecorder()
	s.handleChatCompletions(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
