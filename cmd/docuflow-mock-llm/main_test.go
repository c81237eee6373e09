package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func doCompletion(t *testing.T, s *server, model string) string {
	t.Helper()
	body := `{"model":"` + model + `","messages":[` +
		`{"role":"system","content":"You are a senior business analyst. Write a complete Business Case in markdown."},` +
		`{"role":"user","content":"Context follows."}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("choices = %d", len(resp.Choices))
	}
	return resp.Choices[0].Message.Content
}

func TestLoadFixturesBaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "doc-writer.md", "# Business Case\n\nDraft.\n")
	writeFixture(t, dir, "doc-reviewer.md", "# Review\n\nApproved.\n")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	if len(fixtures) != 2 {
		t.Fatalf("expected 2 models, got %d", len(fixtures))
	}
	for model, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("model %q: expected 1 fixture, got %d", model, len(seq))
		}
	}
}

func TestLoadFixturesSequential(t *testing.T) {
	dir := t.TempDir()

	// Numbered fixtures model a failing first draft followed by a revision.
	writeFixture(t, dir, "doc-writer.1.md", "too short")
	writeFixture(t, dir, "doc-writer.2.md", "# Business Case\n\nRevised draft with substance.\n")
	writeFixture(t, dir, "doc-writer.md", "# Business Case\n\nFallback draft.\n")

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures["doc-writer"]
	if len(seq) != 3 {
		t.Fatalf("expected 3 fixtures, got %d", len(seq))
	}
	if seq[0] != "too short" {
		t.Errorf("fixture[0] = %q", seq[0])
	}
	if !strings.Contains(seq[1], "Revised") {
		t.Errorf("fixture[1] = %q", seq[1])
	}
	if !strings.Contains(seq[2], "Fallback") {
		t.Errorf("fixture[2] = %q", seq[2])
	}
}

func TestLoadFixturesEmptyDir(t *testing.T) {
	if _, err := loadFixtures(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	s := newServer(map[string][]string{
		"doc-writer": {"first draft", "second draft"},
	})

	if got := doCompletion(t, s, "doc-writer"); got != "first draft" {
		t.Errorf("call 1 = %q", got)
	}
	if got := doCompletion(t, s, "doc-writer"); got != "second draft" {
		t.Errorf("call 2 = %q", got)
	}
	// Sequence exhausted: last fixture repeats.
	if got := doCompletion(t, s, "doc-writer"); got != "second draft" {
		t.Errorf("call 3 = %q", got)
	}
}

func TestSynthesizedDocument(t *testing.T) {
	s := newServer(map[string][]string{})

	content := doCompletion(t, s, "llama3.1")
	if !strings.HasPrefix(content, "# Business Case\n") {
		t.Errorf("synthesized title missing, got:\n%s", content)
	}
	if !strings.Contains(content, "## Summary") {
		t.Errorf("synthesized body missing sections:\n%s", content)
	}
}

func TestSynthesizeDocumentFallbackTitle(t *testing.T) {
	content := synthesizeDocument(chatRequest{
		Model:    "llama3.1",
		Messages: []chatMessage{{Role: "user", Content: "hello"}},
	})
	if !strings.HasPrefix(content, "# Generated Document\n") {
		t.Errorf("fallback title missing:\n%s", content)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newServer(map[string][]string{"doc-writer": {"draft"}})

	doCompletion(t, s, "doc-writer")
	doCompletion(t, s, "doc-writer")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, req)

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalCalls != 2 {
		t.Errorf("total_calls = %d", stats.TotalCalls)
	}
	if stats.CallsByModel["doc-writer"] != 2 {
		t.Errorf("calls_by_model = %v", stats.CallsByModel)
	}
}

func TestRequestsEndpoint(t *testing.T) {
	s := newServer(map[string][]string{"doc-writer": {"draft"}})
	doCompletion(t, s, "doc-writer")

	req := httptest.NewRequest(http.MethodGet, "/requests?model=doc-writer", nil)
	w := httptest.NewRecorder()
	s.handleRequests(w, req)

	var out struct {
		RequestsByModel map[string][]capturedRequest `json:"requests_by_model"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	reqs := out.RequestsByModel["doc-writer"]
	if len(reqs) != 1 {
		t.Fatalf("captured = %d", len(reqs))
	}
	if reqs[0].CallIndex != 1 {
		t.Errorf("call_index = %d", reqs[0].CallIndex)
	}
	if len(reqs[0].Messages) != 2 || !strings.Contains(reqs[0].Messages[0].Content, "Business Case") {
		t.Errorf("messages = %+v", reqs[0].Messages)
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	s := newServer(map[string][]string{})
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	w := httptest.NewRecorder()
	s.handleChatCompletions(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", w.Code)
	}
}
