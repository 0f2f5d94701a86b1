package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// =============================================================================
// Helpers
// =============================================================================

func fakeEmbedServer(t *testing.T, status int, body string) (*httptest.Server, *embedRequest) {
	t.Helper()
	var lastReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&lastReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &lastReq
}

// =============================================================================
// Embed
// =============================================================================

func TestOllamaEmbedder_Embed_ShouldReturnFirstVector(t *testing.T) {
	srv, lastReq := fakeEmbedServer(t, http.StatusOK, `{"embeddings":[[0.1,0.2,0.3]]}`)
	e := NewOllamaEmbedder("nomic-embed-text")
	e.SetBaseURL(srv.URL)

	vec, err := e.Embed(context.Background(), "tell me about pikachu")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 || vec[2] != 0.3 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if lastReq.Model != "nomic-embed-text" || lastReq.Input != "tell me about pikachu" {
		t.Errorf("unexpected request: %+v", lastReq)
	}
}

func TestOllamaEmbedder_Embed_WhenEmptyText_ShouldReturnError(t *testing.T) {
	e := NewOllamaEmbedder("nomic-embed-text")
	if _, err := e.Embed(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestOllamaEmbedder_Embed_WhenNon200_ShouldReturnError(t *testing.T) {
	srv, _ := fakeEmbedServer(t, http.StatusInternalServerError, `{"error":"model not loaded"}`)
	e := NewOllamaEmbedder("nomic-embed-text")
	e.SetBaseURL(srv.URL)

	_, err := e.Embed(context.Background(), "pikachu")
	if err == nil || !strings.Contains(err.Error(), "embed api") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestOllamaEmbedder_Embed_WhenNoEmbeddings_ShouldReturnError(t *testing.T) {
	srv, _ := fakeEmbedServer(t, http.StatusOK, `{"embeddings":[]}`)
	e := NewOllamaEmbedder("nomic-embed-text")
	e.SetBaseURL(srv.URL)

	if _, err := e.Embed(context.Background(), "pikachu"); err == nil {
		t.Fatal("expected error for empty embeddings list")
	}
}

func TestOllamaEmbedder_Embed_WhenEmptyVector_ShouldReturnError(t *testing.T) {
	srv, _ := fakeEmbedServer(t, http.StatusOK, `{"embeddings":[[]]}`)
	e := NewOllamaEmbedder("nomic-embed-text")
	e.SetBaseURL(srv.URL)

	if _, err := e.Embed(context.Background(), "pikachu"); err == nil {
		t.Fatal("expected error for empty vector")
	}
}

func TestOllamaEmbedder_SetBaseURL_WhenEmpty_ShouldKeepDefault(t *testing.T) {
	e := NewOllamaEmbedder("nomic-embed-text")
	e.SetBaseURL("")
	if e.baseURL != "http://localhost:11434" {
		t.Errorf("expected default base URL, got %q", e.baseURL)
	}
}
